package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Key joins parts with ':'.
func Key(parts ...interface{}) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// Fingerprint digests a named series. Values are hashed by their bit
// pattern, so two series share a fingerprint only if every value is
// identical.
func Fingerprint(name string, values []float64) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
