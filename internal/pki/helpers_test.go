package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	fixtureOnce sync.Once
	fixtureKeys []*rsa.PrivateKey
	fixtureErr  error
)

// testKeyPair returns one of a few 2048-bit keys shared by the package tests.
func testKeyPair(t *testing.T, i int) *KeyPair {
	t.Helper()

	fixtureOnce.Do(func() {
		for range 3 {
			key, err := rsa.GenerateKey(rand.Reader, 2048)
			if err != nil {
				fixtureErr = err
				return
			}
			fixtureKeys = append(fixtureKeys, key)
		}
	})
	require.NoError(t, fixtureErr)

	kp, err := NewKeyPair(fixtureKeys[i])
	require.NoError(t, err)
	return kp
}
