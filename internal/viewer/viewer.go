// Package viewer decodes certificates into a flat, printable summary.
package viewer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/wolfeidau/devcert/internal/authority"
	"github.com/wolfeidau/devcert/internal/pki"
)

// CertificateInfo is the structured view of a certificate.
type CertificateInfo struct {
	SerialNumber       *big.Int
	IssuerDN           string
	SubjectDN          string
	NotBefore          time.Time
	NotAfter           time.Time
	KeyBits            int
	Modulus            *big.Int
	PublicExponent     int
	SignatureAlgorithm string
	IsCA               bool
	SubjectKeyID       []byte
	AuthorityKeyID     []byte
	Fingerprint        string

	// PrivateExponent is only set through WithPrivateKey.
	PrivateExponent *big.Int
}

// Parse decodes a DER certificate. It has no side effects.
func Parse(der []byte) (*CertificateInfo, error) {
	cert, err := pki.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return FromCertificate(cert), nil
}

// FromCertificate builds the view of an already parsed certificate.
func FromCertificate(cert *pki.Certificate) *CertificateInfo {
	return &CertificateInfo{
		SerialNumber:       cert.SerialNumber,
		IssuerDN:           cert.IssuerDN,
		SubjectDN:          cert.SubjectDN,
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		KeyBits:            cert.KeyBits(),
		Modulus:            new(big.Int).Set(cert.PublicKey.N),
		PublicExponent:     cert.PublicKey.E,
		SignatureAlgorithm: cert.SignatureAlgorithm(),
		IsCA:               cert.IsCA,
		SubjectKeyID:       cert.SubjectKeyID,
		AuthorityKeyID:     cert.AuthorityKeyID,
		Fingerprint:        Fingerprint(cert.Raw),
	}
}

// Fingerprint returns the base58 encoded SHA-256 hash of DER bytes.
func Fingerprint(der []byte) string {
	hash := sha256.Sum256(der)
	return base58.Encode(hash[:])
}

// WithPrivateKey returns a copy of info carrying the private exponent of keyPair.
func (info CertificateInfo) WithPrivateKey(keyPair *pki.KeyPair) *CertificateInfo {
	if keyPair != nil {
		info.PrivateExponent = keyPair.PrivateExponent()
	}
	return &info
}

// Format renders info as a multi-line summary.
func Format(info *CertificateInfo) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Serial Number:       %s\n", info.SerialNumber)
	fmt.Fprintf(&sb, "Issuer:              %s\n", info.IssuerDN)
	fmt.Fprintf(&sb, "Subject:             %s\n", info.SubjectDN)
	fmt.Fprintf(&sb, "Not Before:          %s\n", info.NotBefore.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Not After:           %s\n", info.NotAfter.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Signature Algorithm: %s\n", info.SignatureAlgorithm)
	fmt.Fprintf(&sb, "Is CA:               %t\n", info.IsCA)
	fmt.Fprintf(&sb, "Public Key:          RSA %d bits\n", info.KeyBits)
	fmt.Fprintf(&sb, "Public Exponent:     %d\n", info.PublicExponent)
	fmt.Fprintf(&sb, "Modulus:             %s\n", hexBig(info.Modulus))
	if info.PrivateExponent != nil {
		fmt.Fprintf(&sb, "Private Exponent:    %s\n", hexBig(info.PrivateExponent))
	}
	if len(info.SubjectKeyID) > 0 {
		fmt.Fprintf(&sb, "Subject Key ID:      %s\n", hex.EncodeToString(info.SubjectKeyID))
	}
	if len(info.AuthorityKeyID) > 0 {
		fmt.Fprintf(&sb, "Authority Key ID:    %s\n", hex.EncodeToString(info.AuthorityKeyID))
	}
	fmt.Fprintf(&sb, "Fingerprint:         %s\n", info.Fingerprint)

	return sb.String()
}

// FormatAuthority renders both halves of a built authority including the
// private exponents. For local debugging only.
func FormatAuthority(a *authority.Authority) string {
	var sb strings.Builder

	sb.WriteString("[Issuer]\n")
	sb.WriteString(Format(FromCertificate(a.IssuerCertificate).WithPrivateKey(a.IssuerKeyPair)))
	sb.WriteString("\n[Subject]\n")
	sb.WriteString(Format(FromCertificate(a.SubjectCertificate).WithPrivateKey(a.SubjectKeyPair)))

	return sb.String()
}

func hexBig(n *big.Int) string {
	if n == nil {
		return ""
	}
	return hex.EncodeToString(n.Bytes())
}
