package pki

import (
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 - RFC 5280 key identifier method (1)
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

// Standard certificate extension OIDs (RFC 5280 section 4.2.1).
var (
	// OIDAuthorityKeyIdentifier identifies the authorityKeyIdentifier extension.
	OIDAuthorityKeyIdentifier = asn1.ObjectIdentifier{2, 5, 29, 35}

	// OIDSubjectKeyIdentifier identifies the subjectKeyIdentifier extension.
	OIDSubjectKeyIdentifier = asn1.ObjectIdentifier{2, 5, 29, 14}

	// OIDBasicConstraints identifies the basicConstraints extension.
	OIDBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}
)

// ErrExtensionNotFound is returned when a required extension is missing
var ErrExtensionNotFound = errors.New("extension not found")

// AuthorityKeyIdentifier is the decoded authorityKeyIdentifier extension.
type AuthorityKeyIdentifier struct {
	KeyID        []byte
	IssuerDN     string
	SerialNumber *big.Int
}

// authorityKeyIdentifier mirrors the ASN.1 structure:
//
//	AuthorityKeyIdentifier ::= SEQUENCE {
//	  keyIdentifier             [0] KeyIdentifier OPTIONAL,
//	  authorityCertIssuer       [1] GeneralNames OPTIONAL,
//	  authorityCertSerialNumber [2] CertificateSerialNumber OPTIONAL }
type authorityKeyIdentifier struct {
	KeyID        []byte          `asn1:"optional,tag:0"`
	Issuer       []asn1.RawValue `asn1:"optional,tag:1"`
	SerialNumber *big.Int        `asn1:"optional,tag:2"`
}

// generalNameDirectory is the GeneralName CHOICE tag for directoryName.
const generalNameDirectory = 4

// subjectPublicKeyInfo is used to reach the subjectPublicKey BIT STRING.
type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// KeyIdentifier computes the SHA-1 hash of the subjectPublicKey bits.
func KeyIdentifier(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, fmt.Errorf("failed to unmarshal public key: %w", err)
	}

	sum := sha1.Sum(spki.PublicKey.Bytes) // #nosec G401
	return sum[:], nil
}

// newAuthorityKeyIdentifierExtension builds a non-critical extension binding the
// key identifier, the issuer name and the certificate serial number.
func newAuthorityKeyIdentifierExtension(keyID []byte, issuer *Name, serial *big.Int) (pkix.Extension, error) {
	value, err := asn1.Marshal(authorityKeyIdentifier{
		KeyID: keyID,
		Issuer: []asn1.RawValue{{
			Class:      asn1.ClassContextSpecific,
			Tag:        generalNameDirectory,
			IsCompound: true,
			Bytes:      issuer.Raw(),
		}},
		SerialNumber: serial,
	})
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal authority key identifier: %w", err)
	}

	return pkix.Extension{
		Id:       OIDAuthorityKeyIdentifier,
		Critical: false,
		Value:    value,
	}, nil
}

// ExtractAuthorityKeyIdentifier decodes the authorityKeyIdentifier extension
func ExtractAuthorityKeyIdentifier(cert *x509.Certificate) (*AuthorityKeyIdentifier, error) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(OIDAuthorityKeyIdentifier) {
			continue
		}

		var aki authorityKeyIdentifier
		if _, err := asn1.Unmarshal(ext.Value, &aki); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal authority key identifier: %w", ErrParse, err)
		}

		result := &AuthorityKeyIdentifier{
			KeyID:        aki.KeyID,
			SerialNumber: aki.SerialNumber,
		}
		for _, gn := range aki.Issuer {
			if gn.Class == asn1.ClassContextSpecific && gn.Tag == generalNameDirectory {
				dn, err := formatRawName(gn.Bytes)
				if err != nil {
					return nil, err
				}
				result.IssuerDN = dn
				break
			}
		}
		return result, nil
	}
	return nil, ErrExtensionNotFound
}

// HasExtension reports whether cert carries the extension identified by oid.
func HasExtension(cert *x509.Certificate, oid asn1.ObjectIdentifier) bool {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oid) {
			return true
		}
	}
	return false
}
