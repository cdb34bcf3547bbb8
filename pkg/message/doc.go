// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message provides the ebMS3 message model used by the sender.

# User Messages

A UserMessage carries the header information of an outbound business
message:
  - MessageInfo: message id, timestamp, RefToMessageId
  - PartyInfo: sender and receiver party ids and roles
  - CollaborationInfo: agreement, service, action, conversation id
  - MessageProperties: name/type/value triples
  - PayloadInfo: one PartInfo per MIME attachment

Build one with functional options and render it as a SOAP 1.2 envelope:

	um := message.NewUserMessage(
	    message.WithFrom(message.NewIdentifier("iso6523-actorid-upis", "0088:123"), role),
	    message.WithTo(message.NewIdentifier("iso6523-actorid-upis", "0088:456"), role),
	    message.WithService(message.NewIdentifier("cenbii-procid-ubl", "urn:proc")),
	    message.WithAction("busdox-docid-qns::urn:doc"),
	)
	doc, err := um.Envelope()

# Signal Messages

ParseSignal reads a response envelope into a SignalMessage holding the
receipt (with its non-repudiation information) and any ebMS errors.
Elements are matched by namespace URI, never by prefix.

# References

  - OASIS ebMS 3.0 Core: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
  - AS4 Profile: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
*/
package message
