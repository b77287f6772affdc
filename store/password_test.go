package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordRoundTrip(t *testing.T) {
	encoded, err := hashPassword("hunter2")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := verifyPassword("hunter2", encoded)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("hunter3", encoded)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordSaltVaries(t *testing.T) {
	a, err := hashPassword("same")
	assert.NoError(t, err)
	b, err := hashPassword("same")
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordMalformedHash(t *testing.T) {
	_, err := verifyPassword("x", "not-an-argon-hash")
	assert.Error(t, err)

	_, err = verifyPassword("x", "$argon2id$v=19$m=65536,t=3,p=2$!!!$AAAA")
	assert.Error(t, err)
}
