package crypto

import (
	"crypto/sha256"
)

// Hashv hashes the concatenation of slices.
func Hashv(slices ...[]byte) [HashSize]byte {
	h := sha256.New()
	for _, s := range slices {
		h.Write(s)
	}
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
