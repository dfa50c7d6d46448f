// Package certificate provisions the ephemeral self-signed certificate that
// backs the HTTPS listener.
package certificate

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

const (
	DefaultStrength           = 1024
	DefaultSignatureAlgorithm = x509.SHA256WithRSA
	DefaultOrganization       = "ConfigurableStub"
	DefaultPassword           = "password1"
	DefaultValidity           = 40 * time.Minute

	// clock skew tolerated between signer and verifier
	backdate = time.Second
)

var ErrInvalidValidity = errors.New("certificate validity must be positive")

// Provisioner generates self-signed certificates. The zero value is usable.
type Provisioner struct {
	// Strength is the RSA modulus size in bits
	Strength int
	// SignatureAlgorithm used to self-sign
	SignatureAlgorithm x509.SignatureAlgorithm
	// Organization becomes the CN of the fixed subject "C=UK, CN=<org>"
	Organization string
	// Now is the clock, overridable in tests
	Now func() time.Time
}

// Certificate is a generated certificate with its private key
type Certificate struct {
	X509       *x509.Certificate
	PrivateKey *rsa.PrivateKey
	DER        []byte
}

// Provision generates a key pair, self-signs a certificate valid from one
// second ago until now+validity and exports both as a PKCS#12 bundle
// protected by password.
func (p Provisioner) Provision(validity time.Duration, password string) (*Certificate, []byte, error) {
	if validity <= 0 {
		return nil, nil, ErrInvalidValidity
	}

	key, err := rsa.GenerateKey(rand.Reader, p.strength())
	if err != nil {
		return nil, nil, fmt.Errorf("error generating RSA key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, err
	}

	now := p.now()
	subject := p.subject()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		Issuer:                subject,
		NotBefore:             now.Add(-backdate),
		NotAfter:              now.Add(validity),
		SignatureAlgorithm:    p.signatureAlgorithm(),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("error signing certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing certificate: %w", err)
	}

	bundle, err := pkcs12.Modern.Encode(key, cert, nil, password)
	if err != nil {
		return nil, nil, fmt.Errorf("error exporting certificate bundle: %w", err)
	}

	return &Certificate{X509: cert, PrivateKey: key, DER: der}, bundle, nil
}

// LoadKeyPair decodes a PKCS#12 bundle into a certificate usable by crypto/tls
func LoadKeyPair(bundle []byte, password string) (tls.Certificate, error) {
	key, cert, caCerts, err := pkcs12.DecodeChain(bundle, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("error decoding certificate bundle: %w", err)
	}

	chain := [][]byte{cert.Raw}
	for _, ca := range caCerts {
		chain = append(chain, ca.Raw)
	}

	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}

// Issue provisions a certificate and returns it in the form the listener binds
func (p Provisioner) Issue(validity time.Duration, password string) (tls.Certificate, error) {
	_, bundle, err := p.Provision(validity, password)
	if err != nil {
		return tls.Certificate{}, err
	}
	return LoadKeyPair(bundle, password)
}

// randomSerial draws uniformly from [1, MaxInt64]
func randomSerial() (*big.Int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, fmt.Errorf("error generating serial number: %w", err)
	}
	return n.Add(n, big.NewInt(1)), nil
}

func (p Provisioner) subject() pkix.Name {
	return pkix.Name{
		Country:    []string{"UK"},
		CommonName: p.organization(),
	}
}

func (p Provisioner) strength() int {
	if p.Strength > 0 {
		return p.Strength
	}
	return DefaultStrength
}

func (p Provisioner) signatureAlgorithm() x509.SignatureAlgorithm {
	if p.SignatureAlgorithm != x509.UnknownSignatureAlgorithm {
		return p.SignatureAlgorithm
	}
	return DefaultSignatureAlgorithm
}

func (p Provisioner) organization() string {
	if p.Organization != "" {
		return p.Organization
	}
	return DefaultOrganization
}

func (p Provisioner) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
