package authenticator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the tests fast.
var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestHasher(t *testing.T) {
	h := NewHasher(testParams)

	encoded, err := h.Hash("cisco")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify(encoded, "cisco")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(encoded, "juniper")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := h.Hash("cisco")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "salts should differ")
}

func TestHasherVerifyUsesEncodedParameters(t *testing.T) {
	encoded, err := NewHasher(testParams).Hash("cisco")
	require.NoError(t, err)

	ok, err := NewHasher(DefaultArgon2Params).Verify(encoded, "cisco")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasherMalformed(t *testing.T) {
	h := NewHasher(testParams)
	for _, encoded := range []string{
		"",
		"cisco",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
	} {
		_, err := h.Verify(encoded, "cisco")
		assert.ErrorIs(t, err, ErrMalformedHash, encoded)
	}
}
