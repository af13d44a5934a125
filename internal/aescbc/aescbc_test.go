package aescbc

import (
	"bytes"
	"testing"
)

var testKey = []byte("0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("this is exactly 32 bytes long!!!")
	if len(plaintext)%BlockSize != 0 {
		t.Fatalf("test fixture length %d is not a block multiple", len(plaintext))
	}

	iv := bytes.Repeat([]byte{0x11}, BlockSize)

	enc := New()
	if err := enc.InitEncrypt(testKey); err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	if err := enc.SetIV(iv); err != nil {
		t.Fatalf("SetIV: %v", err)
	}
	ct := make([]byte, len(plaintext))
	if err := enc.EncryptBlocks(plaintext, ct); err != nil {
		t.Fatalf("EncryptBlocks: %v", err)
	}
	if bytes.Equal(ct, plaintext) {
		t.Errorf("ciphertext equals plaintext")
	}

	dec := New()
	if err := dec.InitDecrypt(testKey); err != nil {
		t.Fatalf("InitDecrypt: %v", err)
	}
	if err := dec.SetIV(iv); err != nil {
		t.Fatalf("SetIV: %v", err)
	}
	pt := make([]byte, len(ct))
	if err := dec.DecryptBlocks(ct, pt); err != nil {
		t.Fatalf("DecryptBlocks: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("round trip = %q, want %q", pt, plaintext)
	}
}

func TestRunningIVChainsAcrossCalls(t *testing.T) {
	plaintext := bytes.Repeat([]byte{0xab}, BlockSize*4)
	iv := make([]byte, BlockSize)

	enc := New()
	if err := enc.InitEncrypt(testKey); err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	enc.SetIV(iv)
	wholeCT := make([]byte, len(plaintext))
	if err := enc.EncryptBlocks(plaintext, wholeCT); err != nil {
		t.Fatalf("EncryptBlocks (whole): %v", err)
	}

	enc2 := New()
	if err := enc2.InitEncrypt(testKey); err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	enc2.SetIV(iv)
	splitCT := make([]byte, len(plaintext))
	if err := enc2.EncryptBlocks(plaintext[:BlockSize*2], splitCT[:BlockSize*2]); err != nil {
		t.Fatalf("EncryptBlocks (first half): %v", err)
	}
	if err := enc2.EncryptBlocks(plaintext[BlockSize*2:], splitCT[BlockSize*2:]); err != nil {
		t.Fatalf("EncryptBlocks (second half): %v", err)
	}

	if !bytes.Equal(wholeCT, splitCT) {
		t.Errorf("chained calls diverge from a single call over the same plaintext")
	}
}

func TestInitTwiceFails(t *testing.T) {
	e := New()
	if err := e.InitEncrypt(testKey); err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	if err := e.InitEncrypt(testKey); err != ErrAlreadyInitialized {
		t.Errorf("second Init = %v, want ErrAlreadyInitialized", err)
	}
}

func TestModeMismatch(t *testing.T) {
	e := New()
	if err := e.InitEncrypt(testKey); err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	buf := make([]byte, BlockSize)
	if err := e.DecryptBlocks(buf, buf); err != ErrNotInitialized {
		t.Errorf("DecryptBlocks on encrypt-mode engine = %v, want ErrNotInitialized", err)
	}
}

func TestBadBlockLength(t *testing.T) {
	e := New()
	if err := e.InitEncrypt(testKey); err != nil {
		t.Fatalf("InitEncrypt: %v", err)
	}
	buf := make([]byte, BlockSize+1)
	if err := e.EncryptBlocks(buf, buf); err != ErrBadBlockLength {
		t.Errorf("EncryptBlocks with non-block-multiple length = %v, want ErrBadBlockLength", err)
	}
}

func TestBadKeyLength(t *testing.T) {
	e := New()
	if err := e.InitEncrypt([]byte("short")); err != ErrBadKeyLength {
		t.Errorf("InitEncrypt with short key = %v, want ErrBadKeyLength", err)
	}
}
