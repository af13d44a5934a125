package klv

import "testing"

func TestULEqual(t *testing.T) {
	a := UL{0x06, 0x0e, 0x2b, 0x34}
	b := a
	b[15] = 0xff

	if !a.Equal(a) {
		t.Errorf("Equal(a, a) = false, want true")
	}
	if a.Equal(b) {
		t.Errorf("Equal(a, b) = true, want false (differ in stream byte)")
	}
	if !a.EqualIgnoringStream(b) {
		t.Errorf("EqualIgnoringStream(a, b) = false, want true")
	}
}

func TestULString(t *testing.T) {
	var u UL
	u[0] = 0x06
	u[1] = 0x0e
	got := u.String()
	want := "060e" + "0000000000000000000000000000"[:28]
	if got != want || len(got) != 32 {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBERLengthRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		length   uint64
		berWidth int
	}{
		{"zero placeholder width 8", 0, 8},
		{"small value width 1", 0x40, 1},
		{"large value width 4", 0x01020304, 4},
		{"max width 8", 0xffffffffffffffff, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 1+tt.berWidth)
			w := NewWriter(buf)
			if err := WriteBERLength(w, tt.length, tt.berWidth); err != nil {
				t.Fatalf("WriteBERLength: %v", err)
			}
			r := NewReader(buf)
			got, consumed, err := r.ReadBERLength()
			if err != nil {
				t.Fatalf("ReadBERLength: %v", err)
			}
			if got != tt.length {
				t.Errorf("decoded length = %d, want %d", got, tt.length)
			}
			if consumed != 1+tt.berWidth {
				t.Errorf("consumed = %d, want %d", consumed, 1+tt.berWidth)
			}
		})
	}
}

func TestBERLengthShortForm(t *testing.T) {
	buf := []byte{0x20}
	r := NewReader(buf)
	got, consumed, err := r.ReadBERLength()
	if err != nil {
		t.Fatalf("ReadBERLength: %v", err)
	}
	if got != 0x20 || consumed != 1 {
		t.Errorf("got (%d, %d), want (32, 1)", got, consumed)
	}
}

func TestBERLengthOverflow(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	if err := WriteBERLength(w, 0x1234, 1); err != ErrLengthOverflow {
		t.Errorf("WriteBERLength() = %v, want ErrLengthOverflow", err)
	}
}

func TestReadBERLengthWidthMismatch(t *testing.T) {
	buf := make([]byte, 5)
	w := NewWriter(buf)
	if err := WriteBERLength(w, 1, 4); err != nil {
		t.Fatalf("WriteBERLength: %v", err)
	}
	r := NewReader(buf)
	if _, err := r.ReadBERLengthWidth(2); err != ErrBadBER {
		t.Errorf("ReadBERLengthWidth(2) = %v, want ErrBadBER", err)
	}
	if r.Pos() != 0 {
		t.Errorf("Pos() = %d after failed read, want 0 (unconsumed)", r.Pos())
	}
}

func TestReadKeyAndLength(t *testing.T) {
	var key UL
	key[0] = 0xaa
	buf := make([]byte, KLSize(1)+10)
	w := NewWriter(buf)
	if err := WriteKL(w, key, 10, 1); err != nil {
		t.Fatalf("WriteKL: %v", err)
	}

	r := NewReader(buf)
	gotKey, length, consumed, err := r.ReadKeyAndLength()
	if err != nil {
		t.Fatalf("ReadKeyAndLength: %v", err)
	}
	if gotKey != key {
		t.Errorf("key = %v, want %v", gotKey, key)
	}
	if length != 10 {
		t.Errorf("length = %d, want 10", length)
	}
	if consumed != KLSize(1) {
		t.Errorf("consumed = %d, want %d", consumed, KLSize(1))
	}
}

func TestShortBufferErrors(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.ReadUint32(); err != ErrShortBuffer {
		t.Errorf("ReadUint32 on short buffer = %v, want ErrShortBuffer", err)
	}
	if _, err := r.ReadUL(); err != ErrShortBuffer {
		t.Errorf("ReadUL on short buffer = %v, want ErrShortBuffer", err)
	}

	w := NewWriter(make([]byte, 1))
	if err := w.WriteUint64(1); err != ErrShortBuffer {
		t.Errorf("WriteUint64 into short buffer = %v, want ErrShortBuffer", err)
	}
}
