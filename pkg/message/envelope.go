package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// ErrIncompleteUserMessage is returned when mandatory header fields are empty
var ErrIncompleteUserMessage = errors.New("incomplete user message")

// Validate checks the fields the ebMS3 schema makes mandatory
func (um *UserMessage) Validate() error {
	switch {
	case um.MessageID == "":
		return fmt.Errorf("%w: message id", ErrIncompleteUserMessage)
	case um.From.ID.IsZero():
		return fmt.Errorf("%w: from party id", ErrIncompleteUserMessage)
	case um.From.Role == "":
		return fmt.Errorf("%w: from role", ErrIncompleteUserMessage)
	case um.To.ID.IsZero():
		return fmt.Errorf("%w: to party id", ErrIncompleteUserMessage)
	case um.To.Role == "":
		return fmt.Errorf("%w: to role", ErrIncompleteUserMessage)
	case um.Service.IsZero():
		return fmt.Errorf("%w: service", ErrIncompleteUserMessage)
	case um.Action == "":
		return fmt.Errorf("%w: action", ErrIncompleteUserMessage)
	}
	return nil
}

// Envelope renders the user message as a SOAP 1.2 envelope with an empty
// Body; payloads travel as MIME attachments referenced from PayloadInfo.
func (um *UserMessage) Envelope() (*etree.Document, error) {
	if err := um.Validate(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("env:Envelope")
	env.CreateAttr("xmlns:env", NsSOAP12)

	header := env.CreateElement("env:Header")
	messaging := header.CreateElement("eb:Messaging")
	messaging.CreateAttr("xmlns:eb", NsEbMS)
	messaging.CreateAttr("env:mustUnderstand", "true")

	user := messaging.CreateElement("eb:UserMessage")
	if um.MPC != "" {
		user.CreateAttr("mpc", um.MPC)
	}

	info := user.CreateElement("eb:MessageInfo")
	ts := um.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	info.CreateElement("eb:Timestamp").SetText(ts.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	info.CreateElement("eb:MessageId").SetText(um.MessageID)
	if um.RefToMessageID != "" {
		info.CreateElement("eb:RefToMessageId").SetText(um.RefToMessageID)
	}

	partyInfo := user.CreateElement("eb:PartyInfo")
	writeParty(partyInfo.CreateElement("eb:From"), um.From)
	writeParty(partyInfo.CreateElement("eb:To"), um.To)

	collab := user.CreateElement("eb:CollaborationInfo")
	if um.AgreementRef != "" {
		ref := collab.CreateElement("eb:AgreementRef")
		if um.AgreementType != "" {
			ref.CreateAttr("type", um.AgreementType)
		}
		if um.PModeID != "" {
			ref.CreateAttr("pmode", um.PModeID)
		}
		ref.SetText(um.AgreementRef)
	}
	svc := collab.CreateElement("eb:Service")
	if um.Service.Scheme != "" {
		svc.CreateAttr("type", um.Service.Scheme)
	}
	svc.SetText(um.Service.Value)
	collab.CreateElement("eb:Action").SetText(um.Action)
	collab.CreateElement("eb:ConversationId").SetText(um.ConversationID)

	if len(um.Properties) > 0 {
		props := user.CreateElement("eb:MessageProperties")
		for _, p := range um.Properties {
			writeProperty(props, p)
		}
	}

	if len(um.Parts) > 0 {
		payloadInfo := user.CreateElement("eb:PayloadInfo")
		for _, part := range um.Parts {
			pi := payloadInfo.CreateElement("eb:PartInfo")
			pi.CreateAttr("href", "cid:"+part.ContentID)
			if len(part.Properties) > 0 {
				pp := pi.CreateElement("eb:PartProperties")
				for _, p := range part.Properties {
					writeProperty(pp, p)
				}
			}
		}
	}

	env.CreateElement("env:Body")
	return doc, nil
}

func writeParty(el *etree.Element, p Party) {
	id := el.CreateElement("eb:PartyId")
	if p.ID.Scheme != "" {
		id.CreateAttr("type", p.ID.Scheme)
	}
	id.SetText(p.ID.Value)
	el.CreateElement("eb:Role").SetText(p.Role)
}

func writeProperty(parent *etree.Element, p Property) {
	el := parent.CreateElement("eb:Property")
	el.CreateAttr("name", p.Name)
	if p.Type != "" {
		el.CreateAttr("type", p.Type)
	}
	el.SetText(p.Value)
}
