package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthorityKeyIdentifierExtension(t *testing.T) {
	name, err := ParseName("CN=Ext CA, O=Acme")
	require.NoError(t, err)

	ext, err := newAuthorityKeyIdentifierExtension([]byte{1, 2, 3, 4}, name, big.NewInt(4242))
	require.NoError(t, err)
	require.False(t, ext.Critical)
	require.True(t, ext.Id.Equal(OIDAuthorityKeyIdentifier))

	cert := &x509.Certificate{Extensions: []pkix.Extension{ext}}

	aki, err := ExtractAuthorityKeyIdentifier(cert)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, aki.KeyID)
	require.Equal(t, "CN=Ext CA,O=Acme", aki.IssuerDN)
	require.Equal(t, int64(4242), aki.SerialNumber.Int64())
}

func TestExtractAuthorityKeyIdentifier(t *testing.T) {
	t.Run("missing extension returns error", func(t *testing.T) {
		cert := &x509.Certificate{
			Subject: pkix.Name{CommonName: "test"},
		}

		_, err := ExtractAuthorityKeyIdentifier(cert)
		require.Error(t, err)
		require.Equal(t, ErrExtensionNotFound, err)
	})

	t.Run("malformed value returns parse error", func(t *testing.T) {
		cert := &x509.Certificate{
			Extensions: []pkix.Extension{{Id: OIDAuthorityKeyIdentifier, Value: []byte{0xff}}},
		}

		_, err := ExtractAuthorityKeyIdentifier(cert)
		require.ErrorIs(t, err, ErrParse)
	})
}

func TestKeyIdentifier(t *testing.T) {
	kp := testKeyPair(t, 0)

	id, err := KeyIdentifier(kp.Public())
	require.NoError(t, err)
	require.Len(t, id, 20)

	again, err := KeyIdentifier(kp.Public())
	require.NoError(t, err)
	require.Equal(t, id, again)

	other, err := KeyIdentifier(testKeyPair(t, 1).Public())
	require.NoError(t, err)
	require.NotEqual(t, id, other)
}
