package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math"
	"math/big"
	"time"
)

// DefaultValidityDays is the lifetime of generated certificates.
const DefaultValidityDays = 30

// maxSerial is the exclusive upper bound of serial numbers (max signed 64-bit value).
var maxSerial = big.NewInt(math.MaxInt64)

// Factory builds and signs certificates.
type Factory struct {
	// ValidityDays defaults to DefaultValidityDays when zero.
	ValidityDays int

	// Now defaults to time.Now.
	Now func() time.Time

	// Entropy returns the random source for a single call. Defaults to crypto/rand.
	Entropy func() io.Reader
}

// IssueSelfSigned creates a CA certificate where issuer and subject are dn.
func (f Factory) IssueSelfSigned(dn string, keyPair *KeyPair) (*Certificate, error) {
	if keyPair == nil {
		return nil, fmt.Errorf("%w: key pair is nil", ErrArgument)
	}

	name, err := ParseName(dn)
	if err != nil {
		return nil, err
	}

	random := entropy(f.Entropy)

	serialNumber, err := NewSerialNumber(random)
	if err != nil {
		return nil, err
	}

	keyID, err := KeyIdentifier(keyPair.Public())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	aki, err := newAuthorityKeyIdentifierExtension(keyID, name, serialNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	notBefore, notAfter := f.validity()

	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		RawSubject:            name.Raw(),
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		PublicKey:             keyPair.Public(),
		SignatureAlgorithm:    x509.SHA512WithRSA,
		BasicConstraintsValid: true,
		IsCA:                  true,
		ExtraExtensions:       []pkix.Extension{aki},
	}

	// Self-sign the CA certificate
	der, err := x509.CreateCertificate(random, template, template, keyPair.Public(), keyPair.Signer())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create CA certificate: %w", ErrSigning, err)
	}

	return ParseCertificate(der)
}

// IssueLeaf creates a certificate for subjectDN signed by issuerSigner.
//
// The issuer name is copied from the issuing certificate's own issuer field rather
// than its subject. Both are equal for a self-signed CA.
func (f Factory) IssueLeaf(issuer *Certificate, issuerSigner crypto.Signer, subjectDN string, subjectKeyPair *KeyPair) (*Certificate, error) {
	if issuer == nil || issuerSigner == nil || subjectKeyPair == nil {
		return nil, fmt.Errorf("%w: issuer certificate, issuer key and subject key pair are required", ErrArgument)
	}

	if _, ok := issuerSigner.Public().(*rsa.PublicKey); !ok {
		return nil, fmt.Errorf("%w: issuer key is not RSA (got %T)", ErrSigning, issuerSigner.Public())
	}
	if !issuer.PublicKey.Equal(issuerSigner.Public()) {
		return nil, fmt.Errorf("%w: issuer key does not match issuer certificate", ErrSigning)
	}

	subject, err := ParseName(subjectDN)
	if err != nil {
		return nil, err
	}

	random := entropy(f.Entropy)

	serialNumber, err := NewSerialNumber(random)
	if err != nil {
		return nil, err
	}

	keyID, err := KeyIdentifier(subjectKeyPair.Public())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	notBefore, notAfter := f.validity()

	template := &x509.Certificate{
		SerialNumber:       serialNumber,
		RawSubject:         subject.Raw(),
		NotBefore:          notBefore,
		NotAfter:           notAfter,
		PublicKey:          subjectKeyPair.Public(),
		SignatureAlgorithm: x509.SHA512WithRSA,
		SubjectKeyId:       keyID,
	}

	// Only the issuer name and key of the parent are used when signing.
	parent := &x509.Certificate{
		RawSubject: issuer.X509().RawIssuer,
		PublicKey:  issuer.PublicKey,
	}

	der, err := x509.CreateCertificate(random, template, parent, subjectKeyPair.Public(), issuerSigner)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create certificate: %w", ErrSigning, err)
	}

	return ParseCertificate(der)
}

// IssueFrom creates a certificate for subjectDN signed by an existing authority.
func (f Factory) IssueFrom(signer CASigner, subjectDN string, subjectKeyPair *KeyPair) (*Certificate, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: signer is nil", ErrArgument)
	}
	return f.IssueLeaf(signer.CACertificate(), signer.Signer(), subjectDN, subjectKeyPair)
}

// validity returns the UTC-midnight aligned validity window.
func (f Factory) validity() (time.Time, time.Time) {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}

	days := f.ValidityDays
	if days <= 0 {
		days = DefaultValidityDays
	}

	t := now().UTC()
	notBefore := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return notBefore, notBefore.AddDate(0, 0, days)
}

// NewSerialNumber draws a serial number uniformly from [1, 2^63-1).
func NewSerialNumber(random io.Reader) (*big.Int, error) {
	if random == nil {
		random = rand.Reader
	}

	// [0, maxSerial-1) shifted into [1, maxSerial)
	n, err := rand.Int(random, new(big.Int).Sub(maxSerial, big.NewInt(1)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate serial number: %w", ErrGeneration, err)
	}
	return n.Add(n, big.NewInt(1)), nil
}
