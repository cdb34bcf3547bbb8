package security

import (
	"context"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirosfoundation/go-as4sender/internal/testpki"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"
)

// ocspResponder answers every request for ca with status
func ocspResponder(t *testing.T, ca *testpki.CA, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tmpl := ocsp.Response{
			Status:       status,
			SerialNumber: req.SerialNumber,
			ThisUpdate:   time.Now().Add(-time.Minute),
			NextUpdate:   time.Now().Add(time.Hour),
		}
		if status == ocsp.Revoked {
			tmpl.RevokedAt = time.Now().Add(-time.Minute)
		}
		resp, err := ocsp.CreateResponse(ca.Cert, ca.Cert, tmpl, ca.Key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCheckCertificate_Validity(t *testing.T) {
	ca := testpki.NewCA(t, "Test CA")
	other := testpki.NewCA(t, "Other CA")
	now := time.Now()

	tests := []struct {
		name string
		cert *x509.Certificate
		want CheckResult
	}{
		{"valid", ca.Issue(t, "ap.example.com").Cert, CertValid},
		{"expired", ca.Issue(t, "old", testpki.ValidBetween(now.Add(-48*time.Hour), now.Add(-24*time.Hour))).Cert, CertExpired},
		{"not yet valid", ca.Issue(t, "new", testpki.ValidBetween(now.Add(time.Hour), now.Add(2*time.Hour))).Cert, CertNotYetValid},
		{"untrusted", other.Issue(t, "foreign").Cert, CertUntrusted},
		{"missing", nil, CertNoCertificate},
	}

	checker := NewTrustStoreChecker(ca.Pool())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckCertificate(context.Background(), checker, tt.cert, now, nil, nil)
			assert.Equal(t, tt.want, got)
			if tt.want.IsValid() {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrCertificateInvalid)
			}
		})
	}
}

func TestCheckCertificate_NilCheckerIsNotChecked(t *testing.T) {
	ca := testpki.NewCA(t, "Test CA")
	got, err := CheckCertificate(context.Background(), nil, ca.Issue(t, "ap").Cert, time.Now(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, CertNotChecked, got)
	assert.False(t, got.IsValid())
}

func TestCheckCertificate_OCSP(t *testing.T) {
	ca := testpki.NewCA(t, "Test CA")

	good, goodHits := ocspResponder(t, ca, ocsp.Good)
	revoked, _ := ocspResponder(t, ca, ocsp.Revoked)

	checker := NewTrustStoreChecker(ca.Pool(), WithRevocation(RevocationOCSP, true))

	got, err := CheckCertificate(context.Background(), checker, ca.Issue(t, "good", testpki.WithOCSPServer(good.URL)).Cert, time.Now(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, CertValid, got)
	assert.Equal(t, int32(1), goodHits.Load())

	got, err = CheckCertificate(context.Background(), checker, ca.Issue(t, "bad", testpki.WithOCSPServer(revoked.URL)).Cert, time.Now(), nil, nil)
	assert.Error(t, err)
	assert.Equal(t, CertRevoked, got)

	got, _ = CheckCertificate(context.Background(), checker, ca.Issue(t, "no-aia").Cert, time.Now(), nil, nil)
	assert.Equal(t, CertRevocationUnknown, got)
}

func TestCheckCertificate_CacheOverride(t *testing.T) {
	ca := testpki.NewCA(t, "Test CA")
	srv, hits := ocspResponder(t, ca, ocsp.Good)
	cert := ca.Issue(t, "ap", testpki.WithOCSPServer(srv.URL)).Cert

	checker := NewTrustStoreChecker(ca.Pool(), WithRevocation(RevocationOCSP, true))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := CheckCertificate(ctx, checker, cert, time.Now(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, CertValid, got)
	}
	assert.Equal(t, int32(1), hits.Load(), "second check should be served from cache")

	fresh := false
	got, err := CheckCertificate(ctx, checker, cert, time.Now(), &fresh, nil)
	require.NoError(t, err)
	assert.Equal(t, CertValid, got)
	assert.Equal(t, int32(2), hits.Load(), "override must bypass the cache")
}

func TestCheckCertificate_ModeOverride(t *testing.T) {
	ca := testpki.NewCA(t, "Test CA")
	srv, hits := ocspResponder(t, ca, ocsp.Revoked)
	cert := ca.Issue(t, "ap", testpki.WithOCSPServer(srv.URL)).Cert

	checker := NewTrustStoreChecker(ca.Pool())

	got, err := CheckCertificate(context.Background(), checker, cert, time.Now(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, CertValid, got)
	assert.Equal(t, int32(0), hits.Load())

	mode := RevocationOCSP
	got, _ = CheckCertificate(context.Background(), checker, cert, time.Now(), nil, &mode)
	assert.Equal(t, CertRevoked, got)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCheckCertificate_CRLFallback(t *testing.T) {
	ca := testpki.NewCA(t, "Test CA")

	var crl []byte
	crlSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(crl)
	}))
	defer crlSrv.Close()

	revokedLeaf := ca.Issue(t, "revoked", testpki.WithCRLDistributionPoint(crlSrv.URL))
	goodLeaf := ca.Issue(t, "good", testpki.WithCRLDistributionPoint(crlSrv.URL))
	crl = ca.CRL(t, revokedLeaf.Cert)

	checker := NewTrustStoreChecker(ca.Pool(), WithRevocation(RevocationOCSPThenCRL, true))

	got, _ := CheckCertificate(context.Background(), checker, revokedLeaf.Cert, time.Now(), nil, nil)
	assert.Equal(t, CertRevoked, got)

	got, err := CheckCertificate(context.Background(), checker, goodLeaf.Cert, time.Now(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, CertValid, got)
}

func TestParseRevocationMode(t *testing.T) {
	tests := map[string]RevocationMode{
		"":         RevocationNone,
		"none":     RevocationNone,
		"OCSP":     RevocationOCSP,
		"crl":      RevocationCRL,
		"ocsp-crl": RevocationOCSPThenCRL,
	}
	for in, want := range tests {
		got, err := ParseRevocationMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseRevocationMode("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "ocsp-crl", RevocationOCSPThenCRL.String())
}

func TestCheckResultString(t *testing.T) {
	assert.Equal(t, "valid", CertValid.String())
	assert.Equal(t, "not-checked", CertNotChecked.String())
	assert.Equal(t, "revoked", CertRevoked.String())
}
