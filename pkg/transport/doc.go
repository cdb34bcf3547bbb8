// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport implements the HTTPS client used to push AS4 messages.

TLS 1.2 is the minimum, with the eDelivery AS4 recommended ECDHE suites:

	client := transport.NewHTTPSClient(&transport.HTTPSConfig{
	    MinTLSVersion: transport.TLS12,
	    Certificates:  []tls.Certificate{clientCert},
	    RootCAs:       certPool,
	})

# Retry

SendWithRetry asks a BodyFunc for a fresh body before every attempt, so
attachments are re-streamed from their source each time. Connection failures
and responses selected by RetryPolicy.RetryOn are retried up to MaxRetries
times with a constant Interval. The wait honours context cancellation.

	resp, attempts, err := client.SendWithRetry(ctx, url, newBody,
	    transport.RetryPolicy{MaxRetries: 2, Interval: 10 * time.Second})

# References

  - eDelivery AS4 Transport: https://ec.europa.eu/digital-building-blocks/sites/spaces/DIGITAL/
  - TLS 1.3 RFC 8446: https://datatracker.ietf.org/doc/html/rfc8446
*/
package transport
