package vault

import (
	"testing"

	"github.com/smallbiznis/invois/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(config.Config{VaultPassphrase: "correct horse battery staple", VaultSalt: "invois"})
	require.NoError(t, err)

	sealed, err := v.Encrypt("client-secret-123")
	require.NoError(t, err)
	assert.NotEqual(t, "client-secret-123", sealed)

	plain, err := v.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "client-secret-123", plain)
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	v, err := New(config.Config{VaultPassphrase: "p", VaultSalt: "s"})
	require.NoError(t, err)

	first, err := v.Encrypt("secret")
	require.NoError(t, err)
	second, err := v.Encrypt("secret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	v, err := New(config.Config{VaultPassphrase: "p", VaultSalt: "s"})
	require.NoError(t, err)

	sealed, err := v.Encrypt("secret")
	require.NoError(t, err)

	_, err = v.Decrypt("not base64!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	tampered := []byte(sealed)
	tampered[len(tampered)-5] ^= 0x01
	_, err = v.Decrypt(string(tampered))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewRequiresPassphrase(t *testing.T) {
	_, err := New(config.Config{})
	assert.ErrorIs(t, err, ErrMissingPassphrase)
}
