package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPassword(t *testing.T) {
	digest, err := HashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEmpty(t, digest)
	assert.NotEqual(t, "correct horse battery staple", digest)

	// Salting makes the digest different every time.
	second, err := HashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEqual(t, digest, second)
}

func TestVerifyPassword(t *testing.T) {
	digest, err := HashPassword("secret-value")
	assert.NoError(t, err)

	assert.True(t, VerifyPassword("secret-value", digest))
	assert.False(t, VerifyPassword("wrong-value", digest))
	assert.False(t, VerifyPassword("", digest))
	assert.False(t, VerifyPassword("secret-value", "not-a-bcrypt-digest"))
	assert.False(t, VerifyPassword("secret-value", ""))
}
