package pki

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// KMSAPI is the subset of the AWS KMS client used for signing.
type KMSAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

var _ CASigner = (*KMSSigner)(nil)

// KMSSigner implements CASigner using an RSA key held in AWS KMS.
// The CA private key never leaves KMS - only signing operations are performed.
type KMSSigner struct {
	caCert *Certificate
	signer crypto.Signer
}

// NewKMSSigner creates a KMSSigner for kmsKeyID, which can be a key ID, key ARN,
// alias name, or alias ARN. The KMS public key must match caCert.
func NewKMSSigner(ctx context.Context, client KMSAPI, kmsKeyID string, caCert *Certificate) (*KMSSigner, error) {
	if caCert == nil {
		return nil, fmt.Errorf("%w: CA certificate is required", ErrArgument)
	}

	signer, err := NewKMSCryptoSigner(ctx, client, kmsKeyID)
	if err != nil {
		return nil, err
	}

	// Verify KMS public key matches certificate public key
	if err := verifyCertKeyPair(caCert, signer.Public()); err != nil {
		return nil, fmt.Errorf("KMS key does not match CA certificate: %w", err)
	}

	return &KMSSigner{caCert: caCert, signer: signer}, nil
}

// NewKMSClient creates a KMS client from an AWS configuration.
func NewKMSClient(awsConfig aws.Config) *kms.Client {
	return kms.NewFromConfig(awsConfig)
}

// CACertificate returns the CA certificate.
func (s *KMSSigner) CACertificate() *Certificate {
	return s.caCert
}

// Signer returns a crypto.Signer backed by KMS.
func (s *KMSSigner) Signer() crypto.Signer {
	return s.signer
}

// NewKMSCryptoSigner creates a crypto.Signer backed by AWS KMS.
// This can sign a self-signed CA certificate before any CA certificate exists.
func NewKMSCryptoSigner(ctx context.Context, client KMSAPI, kmsKeyID string) (crypto.Signer, error) {
	if client == nil || kmsKeyID == "" {
		return nil, fmt.Errorf("%w: KMS client and key ID are required", ErrArgument)
	}

	// Get public key from KMS
	pubKeyOutput, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(kmsKeyID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key from KMS: %w", err)
	}

	// Parse the public key (DER-encoded)
	kmsPublicKey, err := x509.ParsePKIXPublicKey(pubKeyOutput.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse KMS public key: %w", ErrParse, err)
	}

	rsaPubKey, ok := kmsPublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: KMS key is not RSA (got %T)", ErrSigning, kmsPublicKey)
	}

	return &kmsCryptoSigner{
		client:    client,
		kmsKeyID:  kmsKeyID,
		publicKey: rsaPubKey,
		ctx:       ctx,
	}, nil
}

// kmsCryptoSigner implements crypto.Signer using AWS KMS
type kmsCryptoSigner struct {
	client    KMSAPI
	kmsKeyID  string
	publicKey *rsa.PublicKey
	ctx       context.Context
}

// Public returns the public key
func (k *kmsCryptoSigner) Public() crypto.PublicKey {
	return k.publicKey
}

// Sign signs the digest using AWS KMS
func (k *kmsCryptoSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	// x509.CreateCertificate hashes with SHA-512 for SHA512WithRSA
	if opts.HashFunc() != crypto.SHA512 {
		return nil, fmt.Errorf("%w: KMS signer only supports SHA512, got %v", ErrSigning, opts.HashFunc())
	}
	if _, ok := opts.(*rsa.PSSOptions); ok {
		return nil, fmt.Errorf("%w: KMS signer does not support RSA-PSS", ErrSigning)
	}

	signOutput, err := k.client.Sign(k.ctx, &kms.SignInput{
		KeyId:            aws.String(k.kmsKeyID),
		Message:          digest,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecRsassaPkcs1V15Sha512,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: KMS sign operation failed: %w", ErrSigning, err)
	}

	// PKCS#1 v1.5 signatures are returned as raw bytes, no re-encoding needed
	return signOutput.Signature, nil
}
