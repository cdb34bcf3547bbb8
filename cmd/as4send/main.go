// Command as4send wraps an XML business document in an SBDH and pushes it to
// the receiver's AS4 access point, printing the sending report.
//
//	as4send -config as4send.yaml \
//	    -sender iso6523-actorid-upis::0088:5798000000001 \
//	    -receiver iso6523-actorid-upis::0088:5798000000002 \
//	    -doctype busdox-docid-qns::urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##...::2.1 \
//	    -process cenbii-procid-ubl::urn:fdc:peppol.eu:2017:poacc:billing:01:1.0 \
//	    invoice.xml
//
// The exit status is 0 when a receipt was received, 2 when sending again may
// succeed and 1 otherwise.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirosfoundation/go-as4sender/internal/config"
	"github.com/sirosfoundation/go-as4sender/internal/keystore"
	"github.com/sirosfoundation/go-as4sender/pkg/discovery"
	"github.com/sirosfoundation/go-as4sender/pkg/exchange"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/sirosfoundation/go-as4sender/pkg/reliability"
	"github.com/sirosfoundation/go-as4sender/pkg/report"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
	"github.com/sirosfoundation/go-as4sender/pkg/sender"
	"github.com/sirosfoundation/go-as4sender/pkg/transport"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitRetryable = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	configPath string
	senderID   string
	receiverID string
	docTypeID  string
	processID  string
	format     string
	payload    string
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("as4send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "as4send.yaml", "configuration file")
	fs.StringVar(&f.senderID, "sender", "", "sender participant id (scheme::value)")
	fs.StringVar(&f.receiverID, "receiver", "", "receiver participant id (scheme::value)")
	fs.StringVar(&f.docTypeID, "doctype", "", "document type id (scheme::value)")
	fs.StringVar(&f.processID, "process", "", "process id (scheme::value)")
	fs.StringVar(&f.format, "format", "json", "report format: json or xml")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, errors.New("exactly one payload file is required")
	}
	f.payload = fs.Arg(0)
	if f.format != "json" && f.format != "xml" {
		return nil, fmt.Errorf("unknown report format %q", f.format)
	}
	for name, v := range map[string]string{"sender": f.senderID, "receiver": f.receiverID, "doctype": f.docTypeID, "process": f.processID} {
		if v == "" {
			return nil, fmt.Errorf("-%s is required", name)
		}
	}
	return f, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "as4send:", err)
		return exitFailed
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "as4send:", err)
		return exitFailed
	}
	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "as4send:", err)
		return exitFailed
	}

	payload, err := os.ReadFile(f.payload)
	if err != nil {
		logger.Error("failed to read payload", "error", err)
		return exitFailed
	}

	opts, err := builderOptions(cfg, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitFailed
	}

	rep := &report.SendingReport{}
	b := sender.NewAutoEnvelope(append(opts,
		sender.WithSenderID(message.ParseIdentifier(f.senderID)),
		sender.WithReceiverID(message.ParseIdentifier(f.receiverID)),
		sender.WithDocumentTypeID(message.ParseIdentifier(f.docTypeID)),
		sender.WithProcessID(message.ParseIdentifier(f.processID)),
		sender.WithPayloadBytes(payload),
		sender.WithReport(rep),
	)...)

	result, sendErr := b.SendMessage(ctx)
	if sendErr != nil {
		logger.Error("sending failed", slog.String("result", result.String()), "error", sendErr)
	} else {
		logger.Info("sending finished", slog.String("result", result.String()))
	}

	if err := writeReport(stdout, rep, f.format); err != nil {
		logger.Error("failed to write report", "error", err)
		return exitFailed
	}

	switch {
	case result.IsSuccess():
		return exitOK
	case sendErr != nil && sender.IsRetryFeasible(sendErr), sendErr == nil && result.RetryFeasible():
		return exitRetryable
	}
	return exitFailed
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

func builderOptions(cfg *config.Config, logger *slog.Logger) ([]sender.Option, error) {
	opts := []sender.Option{
		sender.WithLogger(logger),
		sender.WithPMode(cfg.PMode()),
		sender.WithTracker(reliability.NewTracker(time.Hour)),
		sender.WithSignalValidation(exchange.LoggingResultHandler(logger)),
	}

	httpsConfig := transport.DefaultHTTPSConfig()
	httpsConfig.Timeout = cfg.Transport.Timeout
	if cfg.Transport.MinTLSVersion == "1.3" {
		httpsConfig.MinTLSVersion = transport.TLS13
	}
	opts = append(opts, sender.WithHTTPSClient(transport.NewHTTPSClient(httpsConfig, transport.WithLogger(logger))))

	resolver, err := newResolver(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, sender.WithEndpointResolver(resolver))

	if *cfg.Trust.Enabled {
		roots, err := keystore.LoadCertPool(cfg.Trust.CAFile)
		if err != nil {
			return nil, err
		}
		mode, err := cfg.RevocationMode()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sender.WithTrustChecker(security.NewTrustStoreChecker(roots,
			security.WithRevocation(mode, *cfg.Trust.CacheRevocation),
			security.WithCheckerLogger(logger))))
	} else {
		opts = append(opts, sender.WithCertificateCheck(false))
	}

	partyID := cfg.Sender.PartyID
	if cfg.Signing.KeyFile != "" {
		signer, err := keystore.LoadSigner(cfg.Signing.KeyFile, cfg.Signing.CertFile, cfg.Signing.Hash)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sender.WithSigner(signer))
		if partyID == "" {
			partyID = signer.Certificate().Subject.CommonName
		}
	}
	if partyID != "" {
		opts = append(opts, sender.WithSenderPartyID(partyID))
	}

	if cfg.Sender.CountryC1 != "" {
		opts = append(opts, sender.WithCountryC1(cfg.Sender.CountryC1))
	}
	if cfg.Sender.TempDir != "" {
		opts = append(opts, sender.WithTempDir(cfg.Sender.TempDir))
	}
	if mode, explicit := cfg.CompressionMode(); explicit {
		if mode == nil {
			opts = append(opts, sender.WithoutCompression())
		} else {
			opts = append(opts, sender.WithCompression(mode))
		}
	}
	if cfg.Sender.MaxRetries != nil {
		opts = append(opts, sender.WithRetry(*cfg.Sender.MaxRetries, cfg.Sender.RetryInterval))
	}
	return opts, nil
}

func newResolver(cfg *config.Config, logger *slog.Logger) (discovery.Resolver, error) {
	d := cfg.Discovery
	if d.Mode == config.DiscoveryStatic {
		cert, err := keystore.LoadCertificate(d.Static.CertificateFile)
		if err != nil {
			return nil, err
		}
		return &discovery.StaticResolver{URL: d.Static.URL, Certificate: cert, TechnicalContact: d.Static.Contact}, nil
	}

	smpOpts := []discovery.SMPOption{discovery.WithLogger(logger)}
	if len(d.TransportProfiles) > 0 {
		smpOpts = append(smpOpts, discovery.WithTransportProfiles(d.TransportProfiles...))
	}
	switch d.Mode {
	case config.DiscoverySMP:
		smpOpts = append(smpOpts, discovery.WithFixedSMP(d.SMP.URL))
	case config.DiscoveryBDXL:
		smpOpts = append(smpOpts, discovery.WithBDXL(discovery.NewBDXLClient(discovery.BDXLConfig{
			Domain:    d.BDXL.Domain,
			DNSServer: d.BDXL.DNSServer,
			Format:    discovery.HashFormat(d.BDXL.HashFormat),
		})))
	}
	return discovery.NewSMPResolver(discovery.NewSMPClient(nil), smpOpts...)
}

func writeReport(w io.Writer, rep *report.SendingReport, format string) error {
	if format == "xml" {
		doc := rep.XMLDocument()
		doc.Indent(2)
		_, err := doc.WriteTo(w)
		return err
	}
	data, err := rep.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
