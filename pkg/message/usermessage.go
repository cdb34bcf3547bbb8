package message

import (
	"time"

	"github.com/google/uuid"
)

// Property is an ebMS message or part property
type Property struct {
	Name  string
	Type  string
	Value string
}

// Party is one side of the PartyInfo block
type Party struct {
	ID   Identifier
	Role string
}

// PartInfo describes one payload part in PayloadInfo
type PartInfo struct {
	// ContentID without brackets; rendered as href="cid:..."
	ContentID  string
	Properties []Property
}

// Well-known part property names
const (
	PartPropertyMimeType        = "MimeType"
	PartPropertyCompressionType = "CompressionType"
	PartPropertyCharacterSet    = "CharacterSet"
)

// Message property names added to every Peppol-style user message
const (
	PropertyOriginalSender = "originalSender"
	PropertyFinalRecipient = "finalRecipient"
)

// UserMessage is the ebMS3 user message being sent
type UserMessage struct {
	MessageID      string
	RefToMessageID string
	Timestamp      time.Time
	ConversationID string
	MPC            string

	From Party
	To   Party

	AgreementRef  string
	AgreementType string
	PModeID       string
	Service       Identifier
	Action        string

	Properties []Property
	Parts      []PartInfo
}

// GenerateMessageID returns a new globally unique message id
func GenerateMessageID() string {
	return uuid.New().String() + "@go-as4sender"
}

// Option configures a UserMessage
type Option func(*UserMessage)

// NewUserMessage creates a user message with a fresh message id, timestamp
// and conversation id, then applies opts.
func NewUserMessage(opts ...Option) *UserMessage {
	um := &UserMessage{
		MessageID:      GenerateMessageID(),
		Timestamp:      time.Now().UTC(),
		ConversationID: uuid.New().String(),
		From:           Party{Role: DefaultRole},
		To:             Party{Role: DefaultRole},
	}
	for _, opt := range opts {
		opt(um)
	}
	return um
}

// WithMessageID overrides the generated message id. Empty keeps it.
func WithMessageID(id string) Option {
	return func(um *UserMessage) {
		if id != "" {
			um.MessageID = id
		}
	}
}

// WithConversationID overrides the generated conversation id. Empty keeps it.
func WithConversationID(id string) Option {
	return func(um *UserMessage) {
		if id != "" {
			um.ConversationID = id
		}
	}
}

// WithFrom sets the initiator party and role
func WithFrom(id Identifier, role string) Option {
	return func(um *UserMessage) {
		um.From = Party{ID: id, Role: role}
	}
}

// WithTo sets the responder party and role
func WithTo(id Identifier, role string) Option {
	return func(um *UserMessage) {
		um.To = Party{ID: id, Role: role}
	}
}

// WithService sets the service
func WithService(service Identifier) Option {
	return func(um *UserMessage) { um.Service = service }
}

// WithAction sets the action
func WithAction(action string) Option {
	return func(um *UserMessage) { um.Action = action }
}

// WithAgreementRef sets the agreement reference and the P-Mode id it carries
func WithAgreementRef(ref, refType, pmodeID string) Option {
	return func(um *UserMessage) {
		um.AgreementRef = ref
		um.AgreementType = refType
		um.PModeID = pmodeID
	}
}

// WithMPC sets the message partition channel
func WithMPC(mpc string) Option {
	return func(um *UserMessage) { um.MPC = mpc }
}

// WithProperty appends a message property
func WithProperty(name, typ, value string) Option {
	return func(um *UserMessage) {
		um.Properties = append(um.Properties, Property{Name: name, Type: typ, Value: value})
	}
}

// WithPart appends a PartInfo
func WithPart(p PartInfo) Option {
	return func(um *UserMessage) { um.Parts = append(um.Parts, p) }
}

// Property returns the first message property called name
func (um *UserMessage) Property(name string) (Property, bool) {
	for _, p := range um.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}
