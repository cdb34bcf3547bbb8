// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package report records the outcome of sending one AS4 message.

A SendingReport is filled in by the sender as it resolves the receiver,
checks the certificate and exchanges the message. It exports to JSON or to
an XML element tree. Both exports are generated from the same ordered field
list, so every JSON property has an XML element of the same name.

	r := &report.SendingReport{}
	result, err := sender.NewAutoEnvelope(..., sender.WithReport(r)).SendMessage(ctx)
	data, _ := r.JSON()

The raw HTTP response is only exported when the send was not successful.
*/
package report
