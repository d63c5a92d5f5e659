package core

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint computes the cache key for a question: the text is case-folded
// and its whitespace collapsed before hashing, so trivially different phrasings
// of the same question share one key.
func Fingerprint(question string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}
