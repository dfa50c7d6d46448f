package certificate

import (
	"context"
	"crypto/tls"
	"errors"
	"sync/atomic"
	"time"

	"github.com/SOLUCIONESSYCOM/scribe"
)

// Holder serves the current certificate to the TLS stack. A renewed
// certificate replaces the previous one; certificates are never mutated.
type Holder struct {
	current atomic.Pointer[tls.Certificate]
}

// NewHolder creates a holder serving cert
func NewHolder(cert tls.Certificate) *Holder {
	h := &Holder{}
	h.Store(cert)
	return h
}

// Store supersedes the current certificate
func (h *Holder) Store(cert tls.Certificate) {
	h.current.Store(&cert)
}

// Current returns the certificate being served
func (h *Holder) Current() *tls.Certificate {
	return h.current.Load()
}

// GetCertificate satisfies tls.Config.GetCertificate
func (h *Holder) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := h.current.Load()
	if cert == nil {
		return nil, errors.New("no certificate provisioned")
	}
	return cert, nil
}

// NotAfter returns the expiry of the current certificate
func (h *Holder) NotAfter() time.Time {
	cert := h.current.Load()
	if cert == nil || cert.Leaf == nil {
		return time.Time{}
	}
	return cert.Leaf.NotAfter
}

// RenewalLoop re-issues the certificate once a quarter of its validity is
// left, until ctx is cancelled. Failures are logged and retried on the next
// tick; the previous certificate keeps being served meanwhile.
func (h *Holder) RenewalLoop(ctx context.Context, p Provisioner, validity time.Duration, password string, logger *scribe.Scribe) {
	interval := validity / 8
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Until(h.NotAfter()) > validity/4 {
				continue
			}

			cert, err := p.Issue(validity, password)
			if err != nil {
				logger.Error().AnErr("error", err).Msg("Certificate renewal failed")
				continue
			}
			h.Store(cert)
			logger.Info().
				Str("serial", cert.Leaf.SerialNumber.String()).
				Str("not_after", cert.Leaf.NotAfter.Format(time.RFC3339)).
				Msg("Certificate renewed")
		}
	}
}
