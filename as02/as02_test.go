package as02

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/phastphill/asdcplib/mxf"
)

// memFile is a growable in-memory ReadWriteSeeker + ReaderAt, standing in
// for os.File across this package's write/read round-trip tests.
type memFile struct {
	buf []byte
	pos int64
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	n := copy(f.buf[f.pos:end], p)
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(f.buf))
	}
	f.pos = base + offset
	return f.pos, nil
}

func (f *memFile) Close() error { return nil }

var testEditRate = mxf.Rational{Numerator: 24, Denominator: 1}
var testSampleRate = mxf.Rational{Numerator: 48000, Denominator: 1}

func frameWith(preamble, frame []byte) []byte {
	var out []byte
	for _, part := range [][]byte{preamble, frame} {
		var tl [5]byte
		tl[0] = 0
		binary.BigEndian.PutUint32(tl[1:5], uint32(len(part)))
		out = append(out, tl[:]...)
		out = append(out, part...)
	}
	return out
}

func TestPlaintextRoundTrip(t *testing.T) {
	f := &memFile{}
	w := New()
	sub := &IABSoundfieldLabelSubDescriptor{MCATagName: "IAB"}
	info := mxf.WriterInfo{LabelSet: mxf.LabelSetMXFSMPTE}
	var key [16]byte

	if err := w.Open(f, f, info, key, sub, nil, testEditRate, testSampleRate); err != nil {
		t.Fatalf("Open: %v", err)
	}

	frames := [][2][]byte{
		{[]byte("preamble-0"), []byte("frame-payload-0")},
		{[]byte("preamble-1"), []byte("frame-payload-1-longer")},
		{[]byte("preamble-2"), []byte("f2")},
	}
	for _, fr := range frames {
		if err := w.WriteFrame(frameWith(fr[0], fr[1])); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := w.FinalizeClip(); err != nil {
		t.Fatalf("FinalizeClip: %v", err)
	}
	if err := w.WriteMetadata("captions", "text/plain", "notes", []byte("hello metadata"), false); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := w.FinalizeMXF(); err != nil {
		t.Fatalf("FinalizeMXF: %v", err)
	}

	r, err := OpenRead(f, f, int64(len(f.buf)), info, key)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	if r.FrameCount() != len(frames) {
		t.Fatalf("FrameCount() = %d, want %d", r.FrameCount(), len(frames))
	}
	for i, fr := range frames {
		got, err := r.ReadFrame(i)
		if err != nil {
			t.Fatalf("ReadFrame(%d): %v", i, err)
		}
		want := frameWith(fr[0], fr[1])
		if !bytes.Equal(got, want) {
			t.Errorf("ReadFrame(%d) = %q, want %q", i, got, want)
		}
	}

	var out mxf.FrameBuf
	out.Data = make([]byte, 256)
	if err := r.ReadMetadata("notes", &out); err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got := string(out.Data[:out.Size]); got != "hello metadata" {
		t.Errorf("ReadMetadata = %q, want %q", got, "hello metadata")
	}
}

func TestCompressedMetadataRoundTrip(t *testing.T) {
	f := &memFile{}
	w := New()
	sub := &IABSoundfieldLabelSubDescriptor{MCATagName: "IAB"}
	info := mxf.WriterInfo{LabelSet: mxf.LabelSetMXFSMPTE}
	var key [16]byte

	if err := w.Open(f, f, info, key, sub, nil, testEditRate, testSampleRate); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.WriteFrame(frameWith([]byte("p"), []byte("f"))); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.FinalizeClip(); err != nil {
		t.Fatalf("FinalizeClip: %v", err)
	}
	payload := bytes.Repeat([]byte("repeat me repeat me repeat me "), 40)
	if err := w.WriteMetadata("sidecar", "text/plain", "big-notes", payload, true); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := w.FinalizeMXF(); err != nil {
		t.Fatalf("FinalizeMXF: %v", err)
	}

	r, err := OpenRead(f, f, int64(len(f.buf)), info, key)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	var out mxf.FrameBuf
	out.Data = make([]byte, len(payload)+16)
	if err := r.ReadMetadata("big-notes", &out); err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if !bytes.Equal(out.Data[:out.Size], payload) {
		t.Errorf("ReadMetadata round trip mismatch after zstd compression")
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	f := &memFile{}
	w := New()
	sub := &IABSoundfieldLabelSubDescriptor{MCATagName: "IAB"}
	info := mxf.WriterInfo{LabelSet: mxf.LabelSetMXFSMPTE, EncryptedEssence: true, UsesHMAC: true}
	key := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	if err := w.Open(f, f, info, key, sub, nil, testEditRate, testSampleRate); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.WriteMetadata("captions", "text/plain", "secret-notes", []byte("classified payload"), false); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := w.WriteFrame(frameWith([]byte("p0"), []byte("frame data zero"))); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.FinalizeClip(); err != nil {
		t.Fatalf("FinalizeClip: %v", err)
	}
	if err := w.FinalizeMXF(); err != nil {
		t.Fatalf("FinalizeMXF: %v", err)
	}

	r, err := OpenRead(f, f, int64(len(f.buf)), info, key)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()

	var out mxf.FrameBuf
	out.Data = make([]byte, 256)
	if err := r.ReadMetadata("secret-notes", &out); err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got := string(out.Data[:out.Size]); got != "classified payload" {
		t.Errorf("ReadMetadata = %q, want %q", got, "classified payload")
	}

	var wrongKey [16]byte
	rWrong, err := OpenRead(f, f, int64(len(f.buf)), info, wrongKey)
	if err != nil {
		t.Fatalf("OpenRead with wrong key: %v", err)
	}
	defer rWrong.Close()
	if err := rWrong.ReadMetadata("secret-notes", &out); err == nil {
		t.Errorf("ReadMetadata with wrong content key succeeded, want an error")
	}
}

func TestWriteFrameBeforeOpenFails(t *testing.T) {
	w := New()
	if err := w.WriteFrame([]byte("x")); err == nil {
		t.Errorf("WriteFrame before Open succeeded, want an error")
	}
}

func TestOperationsBeforeOpenFail(t *testing.T) {
	w := New()
	if err := w.WriteMetadata("t", "text/plain", "d", []byte("x"), false); err == nil {
		t.Errorf("WriteMetadata before Open succeeded, want an error")
	}
	if err := w.FinalizeClip(); err == nil {
		t.Errorf("FinalizeClip before Open succeeded, want an error")
	}
	if err := w.FinalizeMXF(); err == nil {
		t.Errorf("FinalizeMXF before Open succeeded, want an error")
	}
}

func TestOpenTwiceFails(t *testing.T) {
	f := &memFile{}
	w := New()
	sub := &IABSoundfieldLabelSubDescriptor{MCATagName: "IAB"}
	info := mxf.WriterInfo{LabelSet: mxf.LabelSetMXFSMPTE}
	var key [16]byte
	if err := w.Open(f, f, info, key, sub, nil, testEditRate, testSampleRate); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Open(f, f, info, key, sub, nil, testEditRate, testSampleRate); err == nil {
		t.Errorf("second Open on the same Writer succeeded, want an error")
	}
}
