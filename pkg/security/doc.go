// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package security implements the WS-Security and trust pieces of the AS4
sending side.

# Signing

RSASigner adds a wsse:Security header with a BinarySecurityToken and an
XML-DSig signature over the SOAP Body, eb:Messaging and every attachment
(SwA Attachment-Content-Signature-Transform). Sign returns the references it
produced:

	signer, err := security.NewRSASigner(key, cert, crypto.SHA256)
	refs, err := signer.Sign(doc, attachments)

Attachments must already be compressed; the digest covers the bytes that go
on the wire.

Encryption is an external collaborator behind the Encryptor interface and is
applied after signing.

# Receipt References

ExtractReferences reads ds:Reference elements by namespace, and
AreSemanticallyEquivalent compares a sent reference with one echoed back in
a non-repudiation receipt:

  - URIs equal
  - same number of transforms, every sent algorithm present in any order
  - digest methods equal
  - digest values equal

# Certificate Checking

CheckCertificate runs a CertificateChecker with optional per-call overrides
for revocation caching and revocation mode:

	checker := security.NewTrustStoreChecker(roots,
	    security.WithRevocation(security.RevocationOCSPThenCRL, true))
	fresh := false
	result, err := security.CheckCertificate(ctx, checker, cert, time.Now(), &fresh, nil)

Revocation uses OCSP (golang.org/x/crypto/ocsp) and CRLs with a time-bounded
cache.

# References

  - WS-Security 1.1.1: https://docs.oasis-open.org/wss/v1.1/
  - SwA Profile 1.1: https://docs.oasis-open.org/wss-m/wss/v1.1.1/wss-SwAProfile-v1.1.1.html
  - XML Signature: https://www.w3.org/TR/xmldsig-core1/
  - ebBP signals (NonRepudiationInformation): https://docs.oasis-open.org/ebxml-bp/2.0.4/
*/
package security
