// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package discovery resolves the receiving access point for an outbound
// message: its URL, its certificate and a technical contact.
//
// A Resolver is either static (one configured endpoint) or SMP-backed. The
// SMP resolver queries the service metadata for (receiver, document type),
// picks the process entry, then selects the first endpoint whose transport
// profile is preferred and whose activation window covers the current time:
//
//	r, err := discovery.NewSMPResolver(nil,
//	    discovery.WithBDXL(discovery.NewBDXLClient(discovery.BDXLConfig{
//	        Domain: "edelivery.tech.ec.europa.eu",
//	    })))
//	res, err := r.Resolve(ctx, docType, process, receiver)
//
// With BDXL the SMP location comes from a U-NAPTR record published under a
// name derived from the receiver identifier (unpadded base32 SHA-256). The
// Peppol format hashes the lower-cased value and keeps the scheme as a
// separate label; the ebCore format hashes the whole identifier.
//
// Every failure wraps ErrLookup. A Resolution is never partially filled.
//
// # References
//
//   - OASIS BDX-Location 1.0: http://docs.oasis-open.org/bdxr/BDX-Location/v1.0/
//   - OASIS SMP 1.0: http://docs.oasis-open.org/bdxr/bdx-smp/v1.0/
//   - RFC 4848: https://www.rfc-editor.org/rfc/rfc4848.html
package discovery
