// Package mic implements the SMPTE 429.6 Message Integrity Code: an
// HMAC-SHA1 whose key is not the caller's 16-byte user key but a 16-byte
// key derived from it, and whose HMAC padding is computed over that
// 16-byte key block directly rather than the usual 64-byte SHA-1 block
// size. Both quirks are load-bearing for interoperability and must not be
// "corrected" to standard HMAC-SHA1.
package mic

import (
	"crypto/sha1"
	"crypto/subtle"
	"errors"
	"math/big"
)

// KeyLen is the width, in bytes, of both the user key and the derived MIC
// key. Size is a mandatory input to the SMPTE 429.6 HMAC construction.
const KeyLen = 16

// Size is the HMAC-SHA1 digest size in bytes.
const Size = sha1.Size

var (
	// ErrNotInitialized is returned by Update/Finalize before a SetKey call.
	ErrNotInitialized = errors.New("mic: key not set")
	// ErrAlreadyFinal is returned by Update after Finalize.
	ErrAlreadyFinal = errors.New("mic: update after finalize")
	// ErrBadKeyLength is returned when a key is not KeyLen bytes.
	ErrBadKeyLength = errors.New("mic: key must be 16 bytes")
)

// keyNonce is the MXF-Interop MIC key derivation constant (SMPTE 429.6 §7.10).
var keyNonce = [KeyLen]byte{
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
	0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
}

// fips186Seed is the standard SHA-1 initial hash value, reused by the FIPS
// 186-2 Appendix 3.1 generator as the constant "t".
var fips186Seed = [sha1.Size]byte{
	0x67, 0x45, 0x23, 0x01, 0xef, 0xcd, 0xab, 0x89,
	0x98, 0xba, 0xdc, 0xfe, 0x10, 0x32, 0x54, 0x76,
	0xc3, 0xd2, 0xe1, 0xf0,
}

var (
	ipadByte byte = 0x36
	opadByte byte = 0x5c
)

// DeriveKeySMPTE computes the SMPTE 429.6 MIC key from a 16-byte user key
// using two rounds of the FIPS 186-2 Appendix 3.1 general-purpose random
// number generator with XSEED=0, keyed by the standard SHA-1 initial hash
// constant. This is bit-exact with the reference implementation; changing
// any constant here breaks interoperability with existing MXF files.
func DeriveKeySMPTE(userKey []byte) ([KeyLen]byte, error) {
	var out [KeyLen]byte
	if len(userKey) != KeyLen {
		return out, ErrBadKeyLength
	}

	mod := new(big.Int).Lsh(big.NewInt(1), 160) // 2^160

	// Round 1: x0 = SHA1(t || userKey)
	h := sha1.New()
	h.Write(fips186Seed[:])
	h.Write(userKey)
	x0 := h.Sum(nil)

	// xkey1 = (userKey + 1 + x0) mod 2^160
	xkey := new(big.Int).SetBytes(userKey)
	xkey.Add(xkey, big.NewInt(1))
	xkey.Add(xkey, new(big.Int).SetBytes(x0))
	xkey.Mod(xkey, mod)

	// Round 2: x1 = SHA1(t || xkey1_be) using xkey1's minimal big-endian form.
	h = sha1.New()
	h.Write(fips186Seed[:])
	h.Write(xkey.Bytes())
	x1 := h.Sum(nil)

	if subtle.ConstantTimeCompare(x0, x1) == 1 {
		return out, errors.New("mic: FIPS 186-2 generator produced x1 == x0, malformed key")
	}

	copy(out[:], x1[:KeyLen])
	return out, nil
}

// DeriveKeyInterop computes the MXF-Interop MIC key: the leading 16 bytes
// of SHA1(userKey || keyNonce).
func DeriveKeyInterop(userKey []byte) ([KeyLen]byte, error) {
	var out [KeyLen]byte
	if len(userKey) != KeyLen {
		return out, ErrBadKeyLength
	}
	h := sha1.New()
	h.Write(userKey)
	h.Write(keyNonce[:])
	sum := h.Sum(nil)
	copy(out[:], sum[:KeyLen])
	return out, nil
}

// Engine computes an HMAC-SHA1 over a 16-byte key block (rather than the
// usual 64-byte SHA-1 block), following SMPTE 429.6. It is not reentrant:
// each frame's MIC must either use its own Engine or call Reset first.
type Engine struct {
	key      [KeyLen]byte
	hasKey   bool
	inner    interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
	}
	final    bool
	digest   [Size]byte
}

// New returns an Engine with no key set; call SetKey before Update.
func New() *Engine {
	return &Engine{}
}

// SetKey installs the derived 16-byte MIC key and resets the engine to
// start accumulating a new message. It does not itself perform key
// derivation; callers use DeriveKeySMPTE or DeriveKeyInterop first per the
// file's LabelSet.
func (e *Engine) SetKey(key [KeyLen]byte) {
	e.key = key
	e.hasKey = true
	e.Reset()
}

// Reset clears any accumulated message state and reopens the engine for a
// new Update/Finalize cycle, keeping the installed key.
func (e *Engine) Reset() {
	if !e.hasKey {
		return
	}
	var xorBuf [KeyLen]byte
	for i := range xorBuf {
		xorBuf[i] = e.key[i] ^ ipadByte
	}
	h := sha1.New()
	h.Write(xorBuf[:])
	e.inner = h
	e.final = false
	e.digest = [Size]byte{}
}

// Update accumulates buf into the running inner hash. Calling Update after
// Finalize fails with ErrAlreadyFinal.
func (e *Engine) Update(buf []byte) error {
	if !e.hasKey {
		return ErrNotInitialized
	}
	if e.final {
		return ErrAlreadyFinal
	}
	e.inner.Write(buf)
	return nil
}

// Finalize completes the HMAC computation. After Finalize, Get/Test may be
// called any number of times, but Update fails until Reset is called.
func (e *Engine) Finalize() error {
	if !e.hasKey {
		return ErrNotInitialized
	}
	inner := e.inner.Sum(nil)

	var xorBuf [KeyLen]byte
	for i := range xorBuf {
		xorBuf[i] = e.key[i] ^ opadByte
	}
	h := sha1.New()
	h.Write(xorBuf[:])
	h.Write(inner)
	sum := h.Sum(nil)
	copy(e.digest[:], sum)
	e.final = true
	return nil
}

// Get returns the finalized 20-byte MIC. Callers must call Finalize first.
func (e *Engine) Get() [Size]byte {
	return e.digest
}

// Test reports whether mac matches the finalized MIC, in constant time.
func (e *Engine) Test(mac []byte) bool {
	if !e.final || len(mac) != Size {
		return false
	}
	return subtle.ConstantTimeCompare(e.digest[:], mac) == 1
}
