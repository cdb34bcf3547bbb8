// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mime handles MIME multipart packaging for AS4.

This package implements SOAP with Attachments (SwA) packaging for AS4
messages with binary payloads.

# MIME Structure

AS4 messages with attachments use multipart/related:

	Content-Type: multipart/related;
	    type="application/soap+xml";
	    start="<soap-envelope>";
	    boundary="----=_Part_..."

	------=_Part_...
	Content-Type: application/soap+xml; charset=UTF-8
	Content-ID: <soap-envelope>

	[SOAP Envelope]

	------=_Part_...
	Content-Description: Attachment
	Content-ID: <payload-1>
	Content-Type: application/gzip
	Content-Transfer-Encoding: binary

	[Binary payload data]

Message.WriteTo opens every attachment source again on each call, which is
what makes an HTTP retry re-stream the same bytes.
*/
package mime
