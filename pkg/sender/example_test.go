package sender_test

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/sirosfoundation/go-as4sender/pkg/discovery"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/sirosfoundation/go-as4sender/pkg/sender"
)

// A receiver that accepts the message but answers without a signal
func ExampleBuilder_SendMessage() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := sender.NewAutoEnvelope(
		sender.WithLogger(slog.New(slog.DiscardHandler)),
		sender.WithSenderID(message.ParseIdentifier("iso6523-actorid-upis::0088:5798000000001")),
		sender.WithReceiverID(message.ParseIdentifier("iso6523-actorid-upis::0088:5798000000002")),
		sender.WithDocumentTypeID(message.ParseIdentifier("busdox-docid-qns::urn:oasis:names:specification:ubl:schema:xsd:Order-2::Order##urn:fdc:peppol.eu:poacc:trns:order:3::2.1")),
		sender.WithProcessID(message.ParseIdentifier("cenbii-procid-ubl::urn:fdc:peppol.eu:poacc:bis:ordering:3")),
		sender.WithPayloadBytes([]byte(`<Order xmlns="urn:oasis:names:specification:ubl:schema:xsd:Order-2"><ID>ORD-12345</ID></Order>`)),
		sender.WithEndpointResolver(&discovery.StaticResolver{URL: srv.URL, Certificate: &x509.Certificate{}}),
	)

	result, err := b.SendMessage(context.Background())
	fmt.Println(result, err, result.RetryFeasible())
	fmt.Println(b.Envelope().Type, b.Envelope().TypeVersion)
	// Output:
	// NO_SIGNAL_MESSAGE_RECEIVED <nil> true
	// Order 2.1
}
