// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package attachment represents the MIME parts of an outbound AS4 message.

An Attachment's content comes from exactly one Source: in-memory bytes, a
file, or a caller supplied StreamProvider. Sources are either read-multiple
or read-once; only read-multiple content can be re-streamed when a send is
retried.

Compression is applied when the attachment is created, so signing and
encryption always operate on the compressed bytes:

	att, err := attachment.CreateFromBytes(scope, data, "application/xml",
	    attachment.WithCompression(compression.Gzip),
	    attachment.WithFilename("invoice.xml"))

	att.MimeType()             // application/gzip
	att.UncompressedMimeType() // application/xml

Temporary files are owned by the resource.Scope passed at creation.
*/
package attachment
