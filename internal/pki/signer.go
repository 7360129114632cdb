package pki

import (
	"crypto"
	"crypto/rsa"
	"fmt"
)

// CASigner issues certificates on behalf of an existing authority.
// Implementations include LocalSigner (key held in memory) and KMSSigner (AWS KMS).
type CASigner interface {
	// CACertificate returns the CA certificate (public key only).
	CACertificate() *Certificate

	// Signer returns the CA private key as a crypto.Signer.
	Signer() crypto.Signer
}

// LocalSigner implements CASigner using a CA private key held in memory.
// This is intended for local development only - not for production use.
type LocalSigner struct {
	caCert *Certificate
	caKey  *KeyPair
}

// NewLocalSigner creates a LocalSigner after checking that the key belongs to the certificate.
func NewLocalSigner(caCert *Certificate, caKey *KeyPair) (*LocalSigner, error) {
	if caCert == nil || caKey == nil {
		return nil, fmt.Errorf("%w: CA certificate and key are required", ErrArgument)
	}

	if err := verifyCertKeyPair(caCert, caKey.Public()); err != nil {
		return nil, fmt.Errorf("CA key and certificate do not match: %w", err)
	}

	return &LocalSigner{caCert: caCert, caKey: caKey}, nil
}

// CACertificate returns the CA certificate.
func (s *LocalSigner) CACertificate() *Certificate {
	return s.caCert
}

// Signer returns the CA private key.
func (s *LocalSigner) Signer() crypto.Signer {
	return s.caKey.Signer()
}

// verifyCertKeyPair checks that a certificate's public key matches a public key
func verifyCertKeyPair(cert *Certificate, pub crypto.PublicKey) error {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: key is not RSA (got %T)", ErrSigning, pub)
	}

	if !cert.PublicKey.Equal(rsaPub) {
		return fmt.Errorf("%w: public keys do not match", ErrSigning)
	}

	return nil
}
