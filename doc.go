// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package goas4sender implements the sending side of an eDelivery AS4
access point: it wraps a business document in a Standard Business Document
Header, finds and vets the receiving access point, pushes the signed ebMS3
user message and interprets the synchronous receipt or error.

# Specifications Implemented

  - OASIS AS4 Profile of ebMS 3.0 Version 1.0: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
  - OASIS ebXML Messaging Services v3.0: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
  - Peppol AS4 profile: https://docs.peppol.eu/edelivery/as4/specification/
  - Peppol SMP and BDXL discovery: https://docs.peppol.eu/edelivery/
  - UN/CEFACT Standard Business Document Header 1.3

# Package Structure

	github.com/sirosfoundation/go-as4sender/pkg/sender      - Message builder state machine and SendMessage
	github.com/sirosfoundation/go-as4sender/pkg/exchange    - Send-and-receive with retry, receipt reference validation
	github.com/sirosfoundation/go-as4sender/pkg/attachment  - Outbound attachments over bytes, files and streams
	github.com/sirosfoundation/go-as4sender/pkg/resource    - Temporary file and closer scope per send
	github.com/sirosfoundation/go-as4sender/pkg/sbdh        - Standard Business Document Header
	github.com/sirosfoundation/go-as4sender/pkg/message     - ebMS3 user and signal messages
	github.com/sirosfoundation/go-as4sender/pkg/mime        - MIME multipart/related packaging
	github.com/sirosfoundation/go-as4sender/pkg/discovery   - Static, SMP and BDXL endpoint resolution
	github.com/sirosfoundation/go-as4sender/pkg/security    - WS-Security signing, response verification, certificate checks
	github.com/sirosfoundation/go-as4sender/pkg/transport   - HTTPS transport with TLS 1.2/1.3 and retry
	github.com/sirosfoundation/go-as4sender/pkg/pmode       - Processing Mode configuration
	github.com/sirosfoundation/go-as4sender/pkg/reliability - Reception awareness tracking
	github.com/sirosfoundation/go-as4sender/pkg/compression - GZIP payload compression
	github.com/sirosfoundation/go-as4sender/pkg/report      - Sending report as JSON or XML

The as4send command in cmd/as4send drives the whole pipeline from a YAML
configuration file.

# Quick Start

	b := sender.NewAutoEnvelope(
	    sender.WithSenderID(message.ParseIdentifier("iso6523-actorid-upis::0088:5798000000001")),
	    sender.WithReceiverID(message.ParseIdentifier("iso6523-actorid-upis::0088:5798000000002")),
	    sender.WithDocumentTypeID(docType),
	    sender.WithProcessID(process),
	    sender.WithPayloadBytes(invoice),
	    sender.WithEndpointResolver(resolver),
	    sender.WithTrustChecker(security.NewTrustStoreChecker(peppolRoots)),
	    sender.WithSigner(signer),
	)
	result, err := b.SendMessage(ctx)

# License

BSD-2-Clause License
*/
package goas4sender
