// Package container bundles a certificate and its private key into a PKCS#12
// container and reads such containers back.
//
// Entries are addressed by alias. The alias of an entry is the issuer DN of its
// certificate and the key entry is looked up as "<alias>_key".
package container

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/devcert/internal/pki"
	"software.sslmate.com/src/go-pkcs12"
)

// KeySuffix is appended to an alias to address the key entry.
const KeySuffix = "_key"

// Packager encodes and decodes PKCS#12 containers.
type Packager struct {
	// Passphrase protects the container. Empty by default for development use.
	Passphrase string

	// Entropy returns the random source for a single call. Defaults to crypto/rand.
	Entropy func() io.Reader
}

// Entry is a decoded container entry.
type Entry struct {
	Alias       string
	Certificate *pki.Certificate
	KeyPair     *pki.KeyPair
}

// KeyAlias returns the alias of the key entry.
func (e *Entry) KeyAlias() string {
	return e.Alias + KeySuffix
}

// Export builds a container with one certificate entry and one key entry bound
// to a chain of length one.
//
// The container stores no alias of its own, so the alias is always the
// certificate's issuer DN (see Certificate.ContainerAlias). An empty alias is
// derived from the certificate; any other alias than the issuer DN is rejected
// with ErrArgument.
func (p Packager) Export(cert *pki.Certificate, keyPair *pki.KeyPair, alias string) ([]byte, error) {
	if cert == nil || keyPair == nil {
		return nil, fmt.Errorf("%w: certificate and key pair are required", pki.ErrArgument)
	}

	if !cert.PublicKey.Equal(keyPair.Public()) {
		return nil, fmt.Errorf("%w: private key does not belong to certificate %s", pki.ErrArgument, cert.SubjectDN)
	}

	want := cert.ContainerAlias()
	if alias == "" {
		alias = want
	}
	if alias != want {
		return nil, fmt.Errorf("%w: alias %q does not name certificate (expected %q)", pki.ErrArgument, alias, want)
	}

	random := rand.Reader
	if p.Entropy != nil {
		if r := p.Entropy(); r != nil {
			random = r
		}
	}

	pfx, err := pkcs12.Encode(random, keyPair.PrivateKey(), cert.X509(), nil, p.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pkcs12: %w", err)
	}

	log.Debug().
		Str("alias", alias).
		Str("subject", cert.SubjectDN).
		Int("size", len(pfx)).
		Msg("exported container")

	return pfx, nil
}

// ExportBase64 is Export followed by standard base64 encoding.
func (p Packager) ExportBase64(cert *pki.Certificate, keyPair *pki.KeyPair, alias string) (string, error) {
	pfx, err := p.Export(cert, keyPair, alias)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pfx), nil
}

// Import decodes a container (base64 text or binary) and returns the certificate
// stored under alias.
func (p Packager) Import(source []byte, alias string) (*pki.Certificate, error) {
	entry, err := p.Open(source, alias)
	if err != nil {
		return nil, err
	}
	return entry.Certificate, nil
}

// ImportFrom is Import for a filesystem path or inline base64 text.
func (p Packager) ImportFrom(source, alias string) (*pki.Certificate, error) {
	entry, err := p.OpenFrom(source, alias)
	if err != nil {
		return nil, err
	}
	return entry.Certificate, nil
}

// OpenFrom is Open for a filesystem path or inline base64 text.
func (p Packager) OpenFrom(source, alias string) (*Entry, error) {
	if alias == "" {
		return nil, fmt.Errorf("%w: alias is empty", pki.ErrArgument)
	}

	data, err := ReadSource(source)
	if err != nil {
		return nil, err
	}
	return p.Open(data, alias)
}

// Open decodes a container and returns the certificate and key stored under alias.
func (p Packager) Open(source []byte, alias string) (*Entry, error) {
	if alias == "" {
		return nil, fmt.Errorf("%w: alias is empty", pki.ErrArgument)
	}

	pfx, err := Decode(source)
	if err != nil {
		return nil, err
	}

	key, x509Cert, _, err := pkcs12.DecodeChain(pfx, p.Passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, fmt.Errorf("%w: incorrect container passphrase", pki.ErrParse)
		}
		return nil, fmt.Errorf("%w: failed to decode pkcs12: %w", pki.ErrParse, err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: container key is not RSA (got %T)", pki.ErrParse, key)
	}

	cert, err := pki.ParseCertificate(x509Cert.Raw)
	if err != nil {
		return nil, err
	}

	keyPair, err := pki.NewKeyPair(rsaKey)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Alias: cert.ContainerAlias(), Certificate: cert, KeyPair: keyPair}

	// exact match on the key entry alias
	if entry.KeyAlias() != alias+KeySuffix {
		return nil, fmt.Errorf("%w: alias %q in container", pki.ErrNotFound, alias+KeySuffix)
	}

	log.Debug().Str("alias", entry.Alias).Str("subject", cert.SubjectDN).Msg("opened container")

	return entry, nil
}
