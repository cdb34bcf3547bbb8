// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package pmode provides the Processing Mode (P-Mode) parameters the sender
consumes.

A P-Mode is treated as a read-only parameter object. The sender reads:

  - Agreement and roles for the eb:CollaborationInfo and eb:PartyInfo
  - ReceptionAwareness.Retry as the default retry count and interval
  - PayloadService.CompressionType as the default payload compression
  - Security.SendReceipt.NonRepudiation to decide whether receipts are
    cross-checked against the sent signature references

P-Modes can be declared in YAML and collected in a Registry:

	pmodes:
	  - id: peppol
	    payload_service:
	      compression_type: application/gzip
	    reception_awareness:
	      retry:
	        max_retries: 2
	        interval: 10s

# References

  - ebMS 3.0 Core, Appendix D: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/
  - AS4 Profile: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
*/
package pmode
