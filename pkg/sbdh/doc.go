// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package sbdh builds and parses the Standard Business Document Header used to
wrap business payloads before they are sent over AS4.

A Document carries routing metadata (sender, receiver), the document
identification block and the Peppol business scopes:

	<StandardBusinessDocument xmlns="http://www.unece.org/cefact/namespaces/StandardBusinessDocumentHeader">
	  <StandardBusinessDocumentHeader>
	    <HeaderVersion>1.0</HeaderVersion>
	    <Sender><Identifier Authority="iso6523-actorid-upis">0088:123</Identifier></Sender>
	    <Receiver>...</Receiver>
	    <DocumentIdentification>
	      <Standard>urn:oasis:names:specification:ubl:schema:xsd:Invoice-2</Standard>
	      <TypeVersion>2.1</TypeVersion>
	      <InstanceIdentifier>...</InstanceIdentifier>
	      <Type>Invoice</Type>
	      <CreationDateAndTime>...</CreationDateAndTime>
	    </DocumentIdentification>
	    <BusinessScope>
	      <Scope><Type>DOCUMENTID</Type>...</Scope>
	      <Scope><Type>PROCESSID</Type>...</Scope>
	    </BusinessScope>
	  </StandardBusinessDocumentHeader>
	  <Invoice xmlns="...">...</Invoice>
	</StandardBusinessDocument>

Derive fills Standard, Type and TypeVersion from the payload and the
document type id when they were not set explicitly.
*/
package sbdh
