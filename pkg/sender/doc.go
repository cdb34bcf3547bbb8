// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package sender assembles and sends one outbound AS4 message carrying a
Standard Business Document.

A Builder moves through Configuring, Resolving, Assembling, Dispatching and
Terminal. Two variants exist:

  - NewAutoEnvelope takes a raw XML business payload, optionally validates
    it, derives the SBDH document identification and wraps it.
  - NewPrebuiltEnvelope takes a complete SBDH produced upstream.

SendMessage runs the pipeline once:

	FinishFields            load payload, resolve endpoint, check certificate, wrap
	IsEveryRequiredFieldSet gate on ids, payload, resolver and endpoint URL
	CustomizeBeforeSending  add originalSender and finalRecipient properties
	dispatch                exchange.SendAndReceive with retry

The receiver certificate is always accepted or rejected before the endpoint
URL is handed to consumers. Resolution and certificate failures are returned
as *Error values with RetryFeasible false; exhausted transport retries are
retry feasible. Temporary files created for the send are removed before
SendMessage returns.
*/
package sender
