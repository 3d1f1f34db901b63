package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_Format(t *testing.T) {
	h, err := HashPassword("aoeuhtns")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=65536,t=1,p=4$"), h)
	assert.Len(t, strings.Split(h, "$"), 6)

	again, err := HashPassword("aoeuhtns")
	require.NoError(t, err)
	assert.NotEqual(t, h, again, "salts differ")
}

func TestVerifyPassword_Argon2id(t *testing.T) {
	h, err := HashPassword("aoeuhtns")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("aoeuhtns", h))
	assert.False(t, VerifyPassword("aoeuhtnz", h))
	assert.False(t, VerifyPassword("", h))
	assert.False(t, NeedsRehash(h))
}

func TestVerifyPassword_Bcrypt(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("aoeuhtns"), bcrypt.MinCost)
	require.NoError(t, err)
	h := string(raw)
	require.True(t, strings.HasPrefix(h, "$2a$"))

	assert.True(t, VerifyPassword("aoeuhtns", h))
	assert.False(t, VerifyPassword("wrong", h))
	assert.True(t, NeedsRehash(h))

	// $2y$ is the PHP spelling of the same algorithm.
	assert.True(t, VerifyPassword("aoeuhtns", "$2y$"+h[4:]))
}

func TestVerifyPassword_UnknownOrBroken(t *testing.T) {
	for _, h := range []string{
		"",
		"aoeuhtns",
		"$plaintext$aoeuhtns",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=0,t=1,p=4$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaGhhc2g",
		"$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHQ",
	} {
		assert.False(t, VerifyPassword("aoeuhtns", h), h)
	}
}

func TestNeedsRehash_WeakerParams(t *testing.T) {
	assert.True(t, NeedsRehash("$argon2id$v=19$m=4096,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2g"))
}

func TestDummyVerify(t *testing.T) {
	assert.False(t, DummyVerify("not a real password"))
}
