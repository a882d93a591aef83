// verge/pkg/payload/hash.go

package payload

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA-256 block size and the fixed HMAC pad bytes.
const (
	hashBlockSize = 64
	innerPad      = 0x36
	outerPad      = 0x5c
)

// ContentHash computes the 16-hex-char verification hash the edge
// engine compares against: the first 8 bytes of an HMAC-SHA256 over
// data with an empty key.
//
// The key is synthesized by hand because the engine's primitive rejects
// zero-length keys: an empty key pads to a zero block, so the inner key
// block is 64 bytes of 0x36 and the outer block 64 bytes of 0x5c, then
// the standard two-pass construction applies. The byte-for-byte
// procedure is a contract with the deployed engine; do not swap it for
// a library call without changing both sides.
func ContentHash(data []byte) string {
	var ikey, okey [hashBlockSize]byte
	for i := 0; i < hashBlockSize; i++ {
		ikey[i] = innerPad
		okey[i] = outerPad
	}

	inner := sha256.New()
	inner.Write(ikey[:])
	inner.Write(data)
	innerSum := inner.Sum(nil)

	outer := sha256.New()
	outer.Write(okey[:])
	outer.Write(innerSum)
	sum := outer.Sum(nil)

	return hex.EncodeToString(sum[:8])
}
