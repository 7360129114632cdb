package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"
	"slices"
)

// DefaultKeyBits is the RSA modulus size used when none is configured.
const DefaultKeyBits = 2048

// SupportedKeyBits lists the RSA modulus sizes the generator accepts.
var SupportedKeyBits = []int{2048, 4096, 8192}

// KeyPair is an RSA key pair with its numeric parameters exposed directly.
type KeyPair struct {
	private *rsa.PrivateKey
}

// NewKeyPair wraps an existing RSA private key.
func NewKeyPair(key *rsa.PrivateKey) (*KeyPair, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: private key is nil", ErrArgument)
	}
	return &KeyPair{private: key}, nil
}

// Modulus returns the public modulus N.
func (k *KeyPair) Modulus() *big.Int {
	return new(big.Int).Set(k.private.N)
}

// PublicExponent returns the public exponent E.
func (k *KeyPair) PublicExponent() int {
	return k.private.E
}

// PrivateExponent returns the private exponent D. For display only.
func (k *KeyPair) PrivateExponent() *big.Int {
	return new(big.Int).Set(k.private.D)
}

// Bits returns the modulus size in bits.
func (k *KeyPair) Bits() int {
	return k.private.N.BitLen()
}

// Public returns the RSA public key.
func (k *KeyPair) Public() *rsa.PublicKey {
	return &k.private.PublicKey
}

// Signer returns the private half as a crypto.Signer.
func (k *KeyPair) Signer() crypto.Signer {
	return k.private
}

// PrivateKey returns the underlying RSA private key.
func (k *KeyPair) PrivateKey() *rsa.PrivateKey {
	return k.private
}

// KeyGenerator produces RSA key pairs.
type KeyGenerator struct {
	// Entropy returns the random source for a single call. Defaults to crypto/rand.
	Entropy func() io.Reader
}

// Generate creates a new RSA key pair of the requested size.
// Generation at 4096 and 8192 bits can take several seconds.
func (g KeyGenerator) Generate(bits int) (*KeyPair, error) {
	if !slices.Contains(SupportedKeyBits, bits) {
		return nil, fmt.Errorf("%w: unsupported key size %d (supported: %v)", ErrGeneration, bits, SupportedKeyBits)
	}

	key, err := rsa.GenerateKey(entropy(g.Entropy), bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return &KeyPair{private: key}, nil
}

// entropy resolves the random source for one operation.
func entropy(source func() io.Reader) io.Reader {
	if source != nil {
		if r := source(); r != nil {
			return r
		}
	}
	return rand.Reader
}
