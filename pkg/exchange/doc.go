// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package exchange pushes an assembled AS4 user message to a receiving access
point and interprets the synchronous response.

SendAndReceive builds the ebMS3 envelope, signs it (capturing the sent
signature references), optionally encrypts, packages the attachments as
multipart/related and posts with bounded retry. Attachments are re-streamed
from their source on every attempt, so a read-once attachment is refused up
front when a retry or a signature would need a second read.

	ex := exchange.New(client, exchange.WithSigner(signer))
	sent, err := ex.SendAndReceive(ctx, &exchange.Request{
	    UserMessage: um,
	    Attachments: atts,
	    URL:         endpoint,
	    Verifier:    security.NewSignatureVerifier(receiverCert, true),
	    MaxRetries:  2,
	    SignalConsumers: []exchange.SignalConsumer{
	        exchange.NewSignalValidator(exchange.LoggingResultHandler(logger)).Consumer(),
	    },
	})

A non-empty response body is always parsed as a signal message and, when a
Verifier is set, its signature is checked before any consumer sees it.

# Receipt validation

SignalValidator compares the ds:Reference elements echoed in a
non-repudiation receipt with the references that were signed. Findings go to
a ValidationResultHandler and never fail the exchange.
*/
package exchange
