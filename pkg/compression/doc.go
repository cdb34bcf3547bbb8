// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package compression provides the compression modes used for AS4 payloads.

The OASIS AS4 profile defines a single mode, GZIP. Modes are kept in a
registry keyed by identifier so that additional codecs can be plugged in:

	mode, err := compression.Lookup("gzip")
	_, err = mode.Compress(dst, src)

Each mode carries the MIME type that compressed parts report as their
primary type (application/gzip for GZIP) and the file extension used for
temporary files.

Buffer helpers remain available for small payloads:

	compressor := compression.NewCompressor()
	compressed, err := compressor.Compress(payload)

# References

  - OASIS AS4 Compression: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
  - GZIP RFC 1952: https://datatracker.ietf.org/doc/html/rfc1952
*/
package compression
