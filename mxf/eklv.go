package mxf

import (
	"github.com/phastphill/asdcplib/dict"
	"github.com/phastphill/asdcplib/internal/aescbc"
	"github.com/phastphill/asdcplib/internal/klv"
	"github.com/phastphill/asdcplib/internal/mic"
)

// FrameBuf is the destination for a decoded (plaintext or decrypted)
// frame. Data's length is its capacity; Size reports how much of it is
// valid after a read.
type FrameBuf struct {
	Data            []byte
	Size            int
	FrameNumber     uint32
	PlaintextOffset uint64
}

// EncryptedTriplet is the parsed Value of an EKLV packet per SMPTE 429.6.
type EncryptedTriplet struct {
	ContextID       [16]byte
	PlaintextOffset uint64
	SourceEssenceUL UL
	SourceLength    uint64
	ESV             []byte // IV (16 bytes) ‖ ciphertext of the encrypted tail
	MIC             []byte // present only when the writer used HMAC
}

// EsvLength computes esv_length: the verbatim plaintext prefix, one IV
// block, and the PKCS-padded ciphertext of the span from PlaintextOffset to
// SourceLength. The ESV's leading PlaintextOffset bytes are the unencrypted
// prefix (per the decrypt algorithm's "copy the plaintext prefix from the
// ESV's leading bytes, before the IV block"); the IV and ciphertext follow.
func EsvLength(sourceLength, plaintextOffset uint64) uint64 {
	span := sourceLength - plaintextOffset
	return plaintextOffset + ((span+15)/16)*16 + 16
}

// warnFunc is called by ReadFrame when it rejects a packet whose key
// doesn't match the expected essence UL or a CryptEssence UL; nil is a
// valid no-op logger.
type warnFunc func(foundUL UL, name string, found bool)

// ReadFrame implements C5: locate frameNumber via the loaded index, read
// its KL, and dispatch on the key. essenceUL is the expected plaintext
// essence element UL (masked comparison). aes and hmacEng may be nil, in
// which case an encrypted frame's raw triplet body is returned instead of
// being decrypted (see spec.md §4.5 step 10).
func (r *Reader) ReadFrame(frameNumber uint32, dst *FrameBuf, essenceUL UL, info WriterInfo, aesEng *aescbc.Engine, hmacEng *mic.Engine, warn warnFunc) error {
	entry, err := r.Lookup(frameNumber)
	if err != nil {
		return err
	}

	filePos := r.essenceStart + int64(entry.StreamOffset)
	if !r.haveLast || filePos != r.lastPosition {
		if err := r.seek(filePos); err != nil {
			return wrap("mxf.ReadFrame", ReadFail, err)
		}
	}

	// Every essence KLV this library writes uses an 8-octet BER length, so
	// the KL prefix is always exactly this many bytes.
	klBuf := make([]byte, klv.KLSize(8))
	if err := r.readFull(klBuf); err != nil {
		return wrap("mxf.ReadFrame", ReadFail, err)
	}
	kr := klv.NewReader(klBuf)
	key, length, klConsumed, err := kr.ReadKeyAndLength()
	if err != nil {
		return wrap("mxf.ReadFrame", Format, err)
	}
	r.lastPosition = filePos + int64(klConsumed) + int64(length)
	r.haveLast = true

	switch {
	case dict.IsCryptEssence(key):
		return r.readEncryptedFrame(frameNumber, dst, key, length, essenceUL, info, aesEng, hmacEng)

	case key.EqualIgnoringStream(essenceUL):
		if len(dst.Data) < int(length) {
			return wrap("mxf.ReadFrame", SmallBuf, nil)
		}
		if err := r.readFull(dst.Data[:length]); err != nil {
			return wrap("mxf.ReadFrame", ReadFail, err)
		}
		dst.Size = int(length)
		dst.FrameNumber = frameNumber
		dst.PlaintextOffset = 0
		return nil

	default:
		name, found := dict.Name(key)
		if warn != nil {
			warn(key, name, found)
		}
		return wrap("mxf.ReadFrame", Format, nil)
	}
}

func (r *Reader) readEncryptedFrame(frameNumber uint32, dst *FrameBuf, key UL, length uint64, essenceUL UL, info WriterInfo, aesEng *aescbc.Engine, hmacEng *mic.Engine) error {
	cipherBuf := make([]byte, length)
	if err := r.readFull(cipherBuf); err != nil {
		return wrap("mxf.ReadFrame", ReadFail, err)
	}
	return DecryptTriplet(cipherBuf, essenceUL, info, frameNumber, dst, aesEng, hmacEng)
}

// DecryptTriplet parses and, when aesEng is non-nil, decrypts a raw
// Encrypted Triplet body (the Value of one EKLV packet, as returned by a
// plain KLV read) into dst. It has no dependency on a Reader's index or file
// handle, so callers outside the frame-indexed hot path — such as as02's
// Generic Stream metadata KLVs — can reuse the same triplet validation and
// decryption logic C5 uses for indexed essence frames.
func DecryptTriplet(cipherBuf []byte, essenceUL UL, info WriterInfo, frameNumber uint32, dst *FrameBuf, aesEng *aescbc.Engine, hmacEng *mic.Engine) error {
	if !info.EncryptedEssence {
		return wrap("mxf.DecryptTriplet", Format, nil)
	}

	triplet, headerLen, err := parseTriplet(cipherBuf, info, essenceUL)
	if err != nil {
		return err
	}

	esvLen := EsvLength(triplet.SourceLength, triplet.PlaintextOffset)
	tmpLen := esvLen
	if info.UsesHMAC {
		tmpLen += mic.Size
	}
	if uint64(len(cipherBuf)) < uint64(headerLen)+tmpLen {
		return wrap("mxf.DecryptTriplet", Format, nil)
	}

	if aesEng == nil {
		// No AES context: return the raw triplet body (ESV + optional MIC)
		// verbatim, out-of-band SourceLength/PlaintextOffset attached.
		body := cipherBuf[headerLen : uint64(headerLen)+tmpLen]
		if len(dst.Data) < len(body) {
			return wrap("mxf.DecryptTriplet", SmallBuf, nil)
		}
		copy(dst.Data, body)
		dst.Size = len(body)
		dst.FrameNumber = frameNumber
		dst.PlaintextOffset = triplet.PlaintextOffset
		return nil
	}

	if len(dst.Data) < int(triplet.SourceLength) {
		return wrap("mxf.DecryptTriplet", SmallBuf, nil)
	}

	// Verbatim plaintext prefix precedes the IV block in the ESV.
	prefix := triplet.ESV[:triplet.PlaintextOffset]
	copy(dst.Data[:triplet.PlaintextOffset], prefix)

	iv := triplet.ESV[triplet.PlaintextOffset : triplet.PlaintextOffset+16]
	ciphertext := triplet.ESV[triplet.PlaintextOffset+16:]
	if err := aesEng.SetIV(iv); err != nil {
		return wrap("mxf.DecryptTriplet", CryptInit, err)
	}
	plainTail := dst.Data[triplet.PlaintextOffset:triplet.SourceLength]
	// The ciphertext is padded to a block multiple; decrypt into a scratch
	// buffer sized to the padded length, then copy only the real span.
	padded := make([]byte, len(ciphertext))
	if err := aesEng.DecryptBlocks(ciphertext, padded); err != nil {
		return wrap("mxf.DecryptTriplet", CryptInit, err)
	}
	copy(plainTail, padded[:len(plainTail)])

	dst.Size = int(triplet.SourceLength)
	dst.FrameNumber = frameNumber
	dst.PlaintextOffset = triplet.PlaintextOffset

	if info.UsesHMAC && hmacEng != nil {
		hmacEng.Reset()
		_ = hmacEng.Update(triplet.ESV)
		var fn [16]byte
		klv.ByteOrder.PutUint64(fn[8:], uint64(frameNumber)+1)
		_ = hmacEng.Update(fn[:])
		_ = hmacEng.Update(info.AssetUUID[:])
		if err := hmacEng.Finalize(); err != nil {
			return wrap("mxf.DecryptTriplet", CryptInit, err)
		}
		if !hmacEng.Test(triplet.MIC) {
			return wrap("mxf.DecryptTriplet", HmacFail, nil)
		}
	}
	return nil
}

// berWidthTriplet is the BER length-octet width used for every length
// prefix inside an Encrypted Triplet, matching this codebase's convention
// elsewhere (partition, index, and header metadata packets all use a fixed
// width-8 BER length rather than sizing it to the field's actual content).
const berWidthTriplet = 8

// parseTriplet parses the Encrypted Triplet fields in order, enforcing
// exact BER widths and validating ContextID/SourceEssenceUL against info
// and essenceUL. It returns the triplet and the number of header bytes
// consumed before the ESV begins.
func parseTriplet(data []byte, info WriterInfo, essenceUL UL) (EncryptedTriplet, int, error) {
	r := klv.NewReader(data)
	var t EncryptedTriplet

	ctxLen, err := r.ReadBERLengthWidth(berWidthTriplet)
	if err != nil || ctxLen != 16 {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}
	if err := r.ReadBytesInto(t.ContextID[:]); err != nil {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}
	if info.HasContextID && t.ContextID != info.ContextID {
		return t, 0, wrap("mxf.parseTriplet", Format, nil)
	}

	if plLen, err := r.ReadBERLengthWidth(berWidthTriplet); err != nil || plLen != 8 {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}
	t.PlaintextOffset, err = r.ReadUint64()
	if err != nil {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}

	ulLen, err := r.ReadBERLengthWidth(berWidthTriplet)
	if err != nil || ulLen != 16 {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}
	t.SourceEssenceUL, err = r.ReadUL()
	if err != nil {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}
	if !t.SourceEssenceUL.EqualIgnoringStream(essenceUL) {
		return t, 0, wrap("mxf.parseTriplet", Format, nil)
	}

	if slLen, err := r.ReadBERLengthWidth(berWidthTriplet); err != nil || slLen != 8 {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}
	t.SourceLength, err = r.ReadUint64()
	if err != nil {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}

	esvLen := EsvLength(t.SourceLength, t.PlaintextOffset)
	esvLenField, err := r.ReadBERLengthWidth(berWidthTriplet)
	if err != nil || esvLenField != esvLen {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}
	headerLen := r.Pos()

	t.ESV, err = r.ReadBytes(int(esvLen))
	if err != nil {
		return t, 0, wrap("mxf.parseTriplet", Format, err)
	}

	if info.UsesHMAC {
		t.MIC, err = r.ReadBytes(mic.Size)
		if err != nil {
			return t, 0, wrap("mxf.parseTriplet", Format, err)
		}
	}

	return t, headerLen, nil
}

// BuildTriplet serializes an Encrypted Triplet ready for KLV wrapping. Each
// field is written as a width-8 BER length of its content followed by the
// content itself, mirroring exactly what parseTriplet reads back.
func BuildTriplet(t EncryptedTriplet, usesHMAC bool) []byte {
	berFieldSize := 1 + berWidthTriplet
	total := berFieldSize + 16 + // ContextID
		berFieldSize + 8 + // PlaintextOffset
		berFieldSize + 16 + // SourceEssenceUL
		berFieldSize + 8 + // SourceLength
		berFieldSize + len(t.ESV)
	if usesHMAC {
		total += len(t.MIC)
	}

	buf := make([]byte, total)
	w := klv.NewWriter(buf)
	_ = klv.WriteBERLength(w, 16, berWidthTriplet)
	_ = w.WriteBytes(t.ContextID[:])
	_ = klv.WriteBERLength(w, 8, berWidthTriplet)
	_ = w.WriteUint64(t.PlaintextOffset)
	_ = klv.WriteBERLength(w, 16, berWidthTriplet)
	_ = w.WriteUL(t.SourceEssenceUL)
	_ = klv.WriteBERLength(w, 8, berWidthTriplet)
	_ = w.WriteUint64(t.SourceLength)
	_ = klv.WriteBERLength(w, uint64(len(t.ESV)), berWidthTriplet)
	_ = w.WriteBytes(t.ESV)
	if usesHMAC {
		_ = w.WriteBytes(t.MIC)
	}
	return buf
}

// EncryptFrame builds a complete Encrypted Triplet for plaintext,
// encrypting the span from plaintextOffset onward with aesEng (whose IV is
// used as the in-band IV for this frame and must already be seeded by the
// caller) and, when info.UsesHMAC, computing the MIC over the resulting
// ESV, frameNumber+1, and info.AssetUUID.
func EncryptFrame(plaintext []byte, plaintextOffset uint64, sourceEssenceUL UL, info WriterInfo, frameNumber uint32, aesEng *aescbc.Engine, hmacEng *mic.Engine) ([]byte, error) {
	sourceLength := uint64(len(plaintext))
	span := plaintext[plaintextOffset:]
	padded := pkcs7Pad(span, aescbc.BlockSize)

	iv := aesEng.IV()
	esv := make([]byte, 0, 16+len(padded))
	esv = append(esv, plaintext[:plaintextOffset]...)
	esv = append(esv, iv[:]...)
	cipherTail := make([]byte, len(padded))
	if err := aesEng.EncryptBlocks(padded, cipherTail); err != nil {
		return nil, wrap("mxf.EncryptFrame", CryptInit, err)
	}
	esv = append(esv, cipherTail...)

	t := EncryptedTriplet{
		ContextID:       info.ContextID,
		PlaintextOffset: plaintextOffset,
		SourceEssenceUL: sourceEssenceUL,
		SourceLength:    sourceLength,
		ESV:             esv,
	}

	if info.UsesHMAC {
		if hmacEng == nil {
			return nil, wrap("mxf.EncryptFrame", CryptInit, nil)
		}
		hmacEng.Reset()
		_ = hmacEng.Update(esv)
		var fn [16]byte
		klv.ByteOrder.PutUint64(fn[8:], uint64(frameNumber)+1)
		_ = hmacEng.Update(fn[:])
		_ = hmacEng.Update(info.AssetUUID[:])
		if err := hmacEng.Finalize(); err != nil {
			return nil, wrap("mxf.EncryptFrame", CryptInit, err)
		}
		mac := hmacEng.Get()
		t.MIC = mac[:]
	}

	return BuildTriplet(t, info.UsesHMAC), nil
}

// pkcs7Pad pads data up to the next multiple of blockSize, filling with the
// pad length as PKCS#7 does. Data that is already a block multiple is
// returned unpadded, so the ciphertext length is ceil(len/16)*16 as
// EsvLength assumes.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := (blockSize - len(data)%blockSize) % blockSize
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

// readFull reads exactly len(dst) bytes sequentially from the stream's
// current position and advances curPos bookkeeping.
func (r *Reader) readFull(dst []byte) error {
	want := len(dst)
	total := 0
	for total < want {
		n, err := r.stream.Read(dst[total:want])
		total += n
		r.curPos += int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}
