// Package authority pairs a freshly generated self-signed issuer with a leaf
// certificate signed by it.
package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/devcert/internal/pki"
)

const (
	// DefaultIssuerName is used when Build is called without an issuer name.
	DefaultIssuerName = "CN=Unnamed Issuer"

	// DefaultSubjectName is used when Build is called without a subject name.
	DefaultSubjectName = "CN=Unnamed Development Certificate"
)

// ErrBuildFailed is returned, joined with the underlying cause, when any step of Build fails.
var ErrBuildFailed = errors.New("failed to build authority")

// Authority is an issuer certificate with its key pair and a subject certificate
// signed by that issuer.
type Authority struct {
	IssuerName  string
	SubjectName string

	IssuerCertificate *pki.Certificate
	IssuerKeyPair     *pki.KeyPair

	SubjectCertificate *pki.Certificate
	SubjectKeyPair     *pki.KeyPair
}

// Signer returns the issuer as a CASigner so further leaves can be issued.
func (a *Authority) Signer() (pki.CASigner, error) {
	return pki.NewLocalSigner(a.IssuerCertificate, a.IssuerKeyPair)
}

// Builder creates authorities.
type Builder struct {
	Keys    pki.KeyGenerator
	Factory pki.Factory

	// KeyBits defaults to pki.DefaultKeyBits when zero.
	KeyBits int
}

// Build generates two key pairs, self-signs the issuer and signs the subject with it.
func (b Builder) Build(ctx context.Context, issuerName, subjectName string) (*Authority, error) {
	if strings.TrimSpace(issuerName) == "" {
		issuerName = DefaultIssuerName
	}
	if strings.TrimSpace(subjectName) == "" {
		subjectName = DefaultSubjectName
	}

	bits := b.KeyBits
	if bits == 0 {
		bits = pki.DefaultKeyBits
	}

	logger := zerolog.Ctx(ctx).With().
		Str("issuer", issuerName).
		Str("subject", subjectName).
		Int("key_bits", bits).
		Logger()

	a, err := b.build(issuerName, subjectName, bits)
	if err != nil {
		logger.Error().Err(err).Msg("build failed")
		return nil, errors.Join(ErrBuildFailed, err)
	}

	logger.Info().
		Str("issuer_serial", a.IssuerCertificate.SerialNumber.String()).
		Str("subject_serial", a.SubjectCertificate.SerialNumber.String()).
		Time("not_after", a.SubjectCertificate.NotAfter).
		Msg("authority built")

	return a, nil
}

func (b Builder) build(issuerName, subjectName string, bits int) (*Authority, error) {
	issuerKeyPair, err := b.Keys.Generate(bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate issuer key: %w", err)
	}

	issuerCert, err := b.Factory.IssueSelfSigned(issuerName, issuerKeyPair)
	if err != nil {
		return nil, fmt.Errorf("failed to issue issuer certificate: %w", err)
	}

	subjectKeyPair, err := b.Keys.Generate(bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate subject key: %w", err)
	}

	subjectCert, err := b.Factory.IssueLeaf(issuerCert, issuerKeyPair.Signer(), subjectName, subjectKeyPair)
	if err != nil {
		return nil, fmt.Errorf("failed to issue subject certificate: %w", err)
	}

	return &Authority{
		IssuerName:         issuerName,
		SubjectName:        subjectName,
		IssuerCertificate:  issuerCert,
		IssuerKeyPair:      issuerKeyPair,
		SubjectCertificate: subjectCert,
		SubjectKeyPair:     subjectKeyPair,
	}, nil
}
