package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// KDFParams are the argon2id work factors.
type KDFParams struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
	KeyLen   uint32
}

// DefaultKDFParams follow the argon2 RFC 9106 second recommendation, which
// costs well above the equivalent of 100k PBKDF2 iterations.
var DefaultKDFParams = KDFParams{
	Time:     3,
	MemoryKB: 64 * 1024,
	Threads:  4,
	KeyLen:   32,
}

func (p KDFParams) withDefaults() KDFParams {
	if p.Time == 0 {
		p.Time = DefaultKDFParams.Time
	}
	if p.MemoryKB == 0 {
		p.MemoryKB = DefaultKDFParams.MemoryKB
	}
	if p.Threads == 0 {
		p.Threads = DefaultKDFParams.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultKDFParams.KeyLen
	}
	return p
}

var errBadHash = errors.New("malformed password hash")

// DeriveKey runs argon2id over password and salt.
func DeriveKey(password, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(password, salt, p.Time, p.MemoryKB, p.Threads, p.KeyLen)
}

// HashPassword derives a password hash. When salt is empty a fresh 128-bit
// salt is generated. The returned hash records the work factors used:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<base64 key>
//
// The salt is returned separately so it can be stored as its own field.
func (s *Service) HashPassword(password, salt []byte) (hash []byte, usedSalt []byte, err error) {
	if len(salt) == 0 {
		salt = make([]byte, SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}

	key := DeriveKey(password, salt, s.kdf)
	encoded := fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s",
		algorithmID, argon2.Version,
		s.kdf.MemoryKB, s.kdf.Time, s.kdf.Threads,
		base64.RawStdEncoding.EncodeToString(key),
	)
	return []byte(encoded), salt, nil
}

// VerifyPassword re-derives the key with the parameters stored in
// storedHash and compares in constant time.
func (s *Service) VerifyPassword(password, storedHash, storedSalt []byte) (bool, error) {
	params, want, err := parseHash(string(storedHash))
	if err != nil {
		return false, err
	}

	got := DeriveKey(password, storedSalt, params)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// NeedsRehash reports whether storedHash was produced with weaker
// parameters than the service is currently configured with.
func (s *Service) NeedsRehash(storedHash []byte) bool {
	params, _, err := parseHash(string(storedHash))
	if err != nil {
		return true
	}
	return params.MemoryKB < s.kdf.MemoryKB || params.Time < s.kdf.Time ||
		params.Threads < s.kdf.Threads || params.KeyLen != s.kdf.KeyLen
}

func parseHash(encoded string) (KDFParams, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != algorithmID {
		return KDFParams{}, nil, errBadHash
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return KDFParams{}, nil, fmt.Errorf("%w: unsupported version %q", errBadHash, parts[2])
	}

	var p KDFParams
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return KDFParams{}, nil, errBadHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return KDFParams{}, nil, fmt.Errorf("%w: parameter %s", errBadHash, name)
		}
		switch name {
		case "m":
			p.MemoryKB = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return KDFParams{}, nil, fmt.Errorf("%w: parameter p", errBadHash)
			}
			p.Threads = uint8(n)
		default:
			return KDFParams{}, nil, fmt.Errorf("%w: unknown parameter %s", errBadHash, name)
		}
	}
	if p.MemoryKB == 0 || p.Time == 0 || p.Threads == 0 {
		return KDFParams{}, nil, fmt.Errorf("%w: missing parameters", errBadHash)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(key) == 0 {
		return KDFParams{}, nil, fmt.Errorf("%w: key encoding", errBadHash)
	}
	p.KeyLen = uint32(len(key))

	return p, key, nil
}
