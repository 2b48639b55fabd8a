package twofactor

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"strings"
)

// BackupCodeAlphabet has no 0, O, 1 or I.
const (
	BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	BackupCodeLength   = 10
)

// NewBackupCode returns BackupCodeLength random characters from
// BackupCodeAlphabet.
func NewBackupCode() (string, error) {
	var b strings.Builder
	b.Grow(BackupCodeLength)
	limit := big.NewInt(int64(len(BackupCodeAlphabet)))
	for i := 0; i < BackupCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(BackupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// FormatBackupCode splits a code in half with a dash: ABCDE-FGHJK.
func FormatBackupCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeBackupCode upper-cases and strips dashes and spaces.
func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// BackupCodeHash binds a canonical code to its owner so equal codes of
// different users hash differently.
func BackupCodeHash(userID, canonicalCode string) string {
	data := make([]byte, 0, len(userID)+1+len(canonicalCode))
	data = append(data, userID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// matchHash scans every stored hash in constant time per entry and
// returns the index of want, or -1.
func matchHash(hashes []string, want string) int {
	idx := -1
	for i, h := range hashes {
		if subtle.ConstantTimeCompare([]byte(h), []byte(want)) == 1 && idx < 0 {
			idx = i
		}
	}
	return idx
}
