package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	tc, err := NewTokenCipher("short")
	require.NoError(t, err)

	sealed, err := tc.Encrypt("access-token")
	require.NoError(t, err)
	assert.NotEqual(t, "access-token", sealed)

	again, err := tc.Encrypt("access-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)

	plain, err := tc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-token", plain)
}

func TestTokenCipherEmptyValues(t *testing.T) {
	tc, err := NewTokenCipher("secret")
	require.NoError(t, err)

	sealed, err := tc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := tc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)

	_, err = NewTokenCipher("")
	assert.Error(t, err)
}

func TestTokenCipherRejectsForeignCiphertext(t *testing.T) {
	a, err := NewTokenCipher("one")
	require.NoError(t, err)
	b, err := NewTokenCipher("two")
	require.NoError(t, err)

	sealed, err := a.Encrypt("access-token")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.Error(t, err)

	_, err = a.Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = a.Decrypt("not base64!")
	assert.Error(t, err)
}

func TestSessionToken(t *testing.T) {
	token, err := GenerateToken("secret", 42, time.Hour)
	require.NoError(t, err)

	userID, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	_, err = ValidateToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateToken("secret", 42, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("secret", expired)
	assert.Error(t, err)

	anonymous, err := GenerateToken("secret", 0, time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken("secret", anonymous)
	assert.Error(t, err)
}
