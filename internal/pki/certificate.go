package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"
	"time"
)

// SignatureAlgorithmName is the only signature algorithm this package produces.
const SignatureAlgorithmName = "SHA512withRSA"

// Certificate is a parsed, immutable X.509 certificate with an RSA public key.
type Certificate struct {
	SerialNumber   *big.Int
	IssuerDN       string
	SubjectDN      string
	NotBefore      time.Time
	NotAfter       time.Time
	PublicKey      *rsa.PublicKey
	IsCA           bool
	SubjectKeyID   []byte
	AuthorityKeyID []byte
	Raw            []byte

	cert *x509.Certificate
}

// ParseCertificate parses a DER encoded certificate.
func ParseCertificate(der []byte) (*Certificate, error) {
	if len(der) == 0 {
		return nil, fmt.Errorf("%w: empty certificate", ErrParse)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse certificate: %w", ErrParse, err)
	}

	return fromX509(cert)
}

func fromX509(cert *x509.Certificate) (*Certificate, error) {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: certificate public key is not RSA (got %T)", ErrParse, cert.PublicKey)
	}

	issuer, err := formatRawName(cert.RawIssuer)
	if err != nil {
		return nil, err
	}
	subject, err := formatRawName(cert.RawSubject)
	if err != nil {
		return nil, err
	}

	return &Certificate{
		SerialNumber:   cert.SerialNumber,
		IssuerDN:       issuer,
		SubjectDN:      subject,
		NotBefore:      cert.NotBefore,
		NotAfter:       cert.NotAfter,
		PublicKey:      pub,
		IsCA:           cert.BasicConstraintsValid && cert.IsCA,
		SubjectKeyID:   cert.SubjectKeyId,
		AuthorityKeyID: cert.AuthorityKeyId,
		Raw:            cert.Raw,
		cert:           cert,
	}, nil
}

// X509 returns the standard library view of the certificate.
func (c *Certificate) X509() *x509.Certificate {
	return c.cert
}

// SignatureAlgorithm returns the signature algorithm in "SHA512withRSA" notation.
func (c *Certificate) SignatureAlgorithm() string {
	if c.cert.SignatureAlgorithm == x509.SHA512WithRSA {
		return SignatureAlgorithmName
	}
	return c.cert.SignatureAlgorithm.String()
}

// KeyBits returns the public modulus size in bits.
func (c *Certificate) KeyBits() int {
	return c.PublicKey.N.BitLen()
}

// Validity returns notAfter - notBefore.
func (c *Certificate) Validity() time.Duration {
	return c.NotAfter.Sub(c.NotBefore)
}

// CheckSignatureFrom verifies that c was signed by issuer.
func (c *Certificate) CheckSignatureFrom(issuer *Certificate) error {
	return c.cert.CheckSignatureFrom(issuer.cert)
}

// ContainerAlias returns the alias under which the certificate is stored in a container.
func (c *Certificate) ContainerAlias() string {
	return c.IssuerDN
}
