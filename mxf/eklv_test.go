package mxf

import (
	"bytes"
	"testing"

	"github.com/phastphill/asdcplib/internal/aescbc"
	"github.com/phastphill/asdcplib/internal/mic"
)

var testEssenceUL = UL{0x06, 0x0e, 0x2b, 0x34, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x00}
var testKey128 = []byte("0123456789abcdef")

func newTestEngines(t *testing.T, usesHMAC bool, labelSet LabelSet) (*aescbc.Engine, *aescbc.Engine, *mic.Engine, *mic.Engine) {
	t.Helper()
	encAES := aescbc.New()
	if err := encAES.InitEncrypt(testKey128); err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	if err := encAES.SetIV(bytes.Repeat([]byte{0x42}, aescbc.BlockSize)); err != nil {
		t.Fatalf("SetIV: %v", err)
	}
	decAES := aescbc.New()
	if err := decAES.InitDecrypt(testKey128); err != nil {
		t.Fatalf("InitDecrypt: %v", err)
	}

	var encHMAC, decHMAC *mic.Engine
	if usesHMAC {
		var derived [mic.KeyLen]byte
		var err error
		if labelSet == LabelSetMXFInterop {
			derived, err = mic.DeriveKeyInterop(testKey128)
		} else {
			derived, err = mic.DeriveKeySMPTE(testKey128)
		}
		if err != nil {
			t.Fatalf("derive key: %v", err)
		}
		encHMAC = mic.New()
		encHMAC.SetKey(derived)
		decHMAC = mic.New()
		decHMAC.SetKey(derived)
	}
	return encAES, decAES, encHMAC, decHMAC
}

func TestEncryptDecryptFrameRoundTrip(t *testing.T) {
	plaintext := []byte("this is a sample IAB frame payload of arbitrary length")
	encAES, decAES, encHMAC, decHMAC := newTestEngines(t, true, LabelSetMXFSMPTE)

	info := WriterInfo{
		LabelSet:         LabelSetMXFSMPTE,
		EncryptedEssence: true,
		UsesHMAC:         true,
	}

	triplet, err := EncryptFrame(plaintext, 0, testEssenceUL, info, 0, encAES, encHMAC)
	if err != nil {
		t.Fatalf("EncryptFrame: %v", err)
	}

	dst := &FrameBuf{Data: make([]byte, len(plaintext))}
	if err := DecryptTriplet(triplet, testEssenceUL, info, 0, dst, decAES, decHMAC); err != nil {
		t.Fatalf("DecryptTriplet: %v", err)
	}
	if !bytes.Equal(dst.Data[:dst.Size], plaintext) {
		t.Errorf("decrypted = %q, want %q", dst.Data[:dst.Size], plaintext)
	}
}

func TestEncryptDecryptWithPlaintextPrefix(t *testing.T) {
	plaintext := append([]byte("PREFIX--"), []byte("encrypted tail content here")...)
	prefixLen := uint64(8)
	encAES, decAES, _, _ := newTestEngines(t, false, LabelSetMXFSMPTE)

	info := WriterInfo{LabelSet: LabelSetMXFSMPTE, EncryptedEssence: true}

	triplet, err := EncryptFrame(plaintext, prefixLen, testEssenceUL, info, 0, encAES, nil)
	if err != nil {
		t.Fatalf("EncryptFrame: %v", err)
	}

	dst := &FrameBuf{Data: make([]byte, len(plaintext))}
	if err := DecryptTriplet(triplet, testEssenceUL, info, 0, dst, decAES, nil); err != nil {
		t.Fatalf("DecryptTriplet: %v", err)
	}
	if !bytes.Equal(dst.Data[:dst.Size], plaintext) {
		t.Errorf("decrypted = %q, want %q", dst.Data[:dst.Size], plaintext)
	}
	if dst.PlaintextOffset != prefixLen {
		t.Errorf("PlaintextOffset = %d, want %d", dst.PlaintextOffset, prefixLen)
	}
}

func TestDecryptTripletRejectsTamperedCiphertext(t *testing.T) {
	plaintext := []byte("integrity protected payload")
	encAES, decAES, encHMAC, decHMAC := newTestEngines(t, true, LabelSetMXFSMPTE)
	info := WriterInfo{LabelSet: LabelSetMXFSMPTE, EncryptedEssence: true, UsesHMAC: true}

	triplet, err := EncryptFrame(plaintext, 0, testEssenceUL, info, 0, encAES, encHMAC)
	if err != nil {
		t.Fatalf("EncryptFrame: %v", err)
	}

	tampered := append([]byte(nil), triplet...)
	tampered[len(tampered)-1] ^= 0xff // flip a byte inside the MIC field

	dst := &FrameBuf{Data: make([]byte, len(plaintext))}
	err = DecryptTriplet(tampered, testEssenceUL, info, 0, dst, decAES, decHMAC)
	if err == nil {
		t.Errorf("DecryptTriplet on tampered ciphertext succeeded, want an error")
	}
}

func TestDecryptTripletRejectsWrongEssenceUL(t *testing.T) {
	plaintext := []byte("payload")
	encAES, decAES, _, _ := newTestEngines(t, false, LabelSetMXFSMPTE)
	info := WriterInfo{LabelSet: LabelSetMXFSMPTE, EncryptedEssence: true}

	triplet, err := EncryptFrame(plaintext, 0, testEssenceUL, info, 0, encAES, nil)
	if err != nil {
		t.Fatalf("EncryptFrame: %v", err)
	}

	wrongUL := testEssenceUL
	wrongUL[7] ^= 0xff

	dst := &FrameBuf{Data: make([]byte, len(plaintext))}
	if err := DecryptTriplet(triplet, wrongUL, info, 0, dst, decAES, nil); err == nil {
		t.Errorf("DecryptTriplet with mismatched essence UL succeeded, want an error")
	}
}

func TestEsvLength(t *testing.T) {
	tests := []struct {
		sourceLength, plaintextOffset, want uint64
	}{
		{16, 0, 32},  // exactly one block, plus IV block
		{20, 0, 48},  // padded to two blocks, plus IV block
		{20, 4, 4 + 16 + 16}, // 4-byte prefix + one padded ciphertext block + IV
	}
	for _, tt := range tests {
		got := EsvLength(tt.sourceLength, tt.plaintextOffset)
		if got != tt.want {
			t.Errorf("EsvLength(%d, %d) = %d, want %d", tt.sourceLength, tt.plaintextOffset, got, tt.want)
		}
	}
}
