package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argonVersion = argon2.Version
	argonMemory  = 64 * 1024
	argonTime    = 1
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

var b64 = base64.RawStdEncoding

// dummyHash is verified against when a login names an unknown user, so the
// response time does not reveal which usernames exist.
var dummyHash = mustHash("not a real password")

// HashPassword returns an argon2id hash in PHC string format.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonVersion, argonMemory, argonTime, argonThreads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func mustHash(password string) string {
	h, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	return h
}

// VerifyPassword dispatches on the hash's algorithm tag. Unknown tags and
// malformed hashes never verify.
func VerifyPassword(password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(password, encoded)
	case isBcrypt(encoded):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	}
	return false
}

// DummyVerify costs about as much as a real verification and always fails.
func DummyVerify(password string) bool {
	verifyArgon2id(password, dummyHash)
	return false
}

// NeedsRehash reports whether a hash that just verified should be replaced
// with one made by HashPassword.
func NeedsRehash(encoded string) bool {
	p, ok := parseArgon2id(encoded)
	if !ok {
		return true
	}
	return p.memory != argonMemory || p.time != argonTime || p.threads != argonThreads || len(p.key) != argonKeyLen
}

func isBcrypt(encoded string) bool {
	for _, tag := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, tag) {
			return true
		}
	}
	return false
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2id(encoded string) (*argonParams, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argonVersion {
		return nil, false
	}
	p := &argonParams{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, false
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return nil, false
	}
	var err error
	if p.salt, err = b64.DecodeString(parts[4]); err != nil {
		return nil, false
	}
	if p.key, err = b64.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, false
	}
	return p, true
}

func verifyArgon2id(password, encoded string) bool {
	p, ok := parseArgon2id(encoded)
	if !ok {
		return false
	}
	got := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(got, p.key) == 1
}
