package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gatehouse/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, Verify("correct horse", hash))
	assert.ErrorIs(t, Verify("battery staple", hash), ErrMismatch)
}

func TestHash_RejectsEmptyAndOversized(t *testing.T) {
	_, err := Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = Hash(strings.Repeat("x", 80))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestVerify_MalformedHash(t *testing.T) {
	err := Verify("secret", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestTokens(t *testing.T) {
	a, err := TokenHex(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, err := TokenHex(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	u, err := TokenURL(32)
	require.NoError(t, err)
	assert.Len(t, u, 43)
	assert.NotContains(t, u, "=")
}
