package mxf

import (
	"io"

	"github.com/phastphill/asdcplib/dict"
	"github.com/phastphill/asdcplib/internal/klv"
)

// ripEntrySize is the encoded size of one RIP entry: BodySID (u32) + byte
// offset (u64).
const ripEntrySize = 4 + 8

// berWidthRIP is the BER width used for the RIP's own KLV, chosen small
// since the RIP's value length is always modest.
const berWidthRIP = 4

// WriteRIP serializes entries as a Random Index Pack, including the
// trailing 4-byte total-pack-length field a reader uses to find the RIP's
// start by scanning backward from EOF.
func WriteRIP(entries []RIPEntry) []byte {
	value := make([]byte, 0, len(entries)*ripEntrySize)
	for _, e := range entries {
		value = appendUint32(value, e.BodySID)
		value = appendUint64(value, e.Offset)
	}
	klSize := klv.KLSize(berWidthRIP)
	total := klSize + len(value) + 4 // +4 for the trailing length field itself
	value = appendUint32(value, uint32(total))

	buf := make([]byte, klSize+len(value))
	w := klv.NewWriter(buf)
	_ = klv.WriteKL(w, dict.RIPKey, uint64(len(value)), berWidthRIP)
	_ = w.WriteBytes(value)
	return buf
}

// ReadRIPAtEOF scans backward from the end of a random-access file to find
// and parse the trailing Random Index Pack, returning its entries and the
// byte offset at which the RIP itself begins.
func ReadRIPAtEOF(f io.ReaderAt, fileSize int64) ([]RIPEntry, int64, error) {
	if fileSize < 4 {
		return nil, 0, wrap("mxf.ReadRIPAtEOF", ReadFail, nil)
	}
	var lenBuf [4]byte
	if _, err := f.ReadAt(lenBuf[:], fileSize-4); err != nil {
		return nil, 0, wrap("mxf.ReadRIPAtEOF", ReadFail, err)
	}
	total := klv.ByteOrder.Uint32(lenBuf[:])
	ripStart := fileSize - int64(total)
	if ripStart < 0 {
		return nil, 0, wrap("mxf.ReadRIPAtEOF", Format, nil)
	}

	packBuf := make([]byte, total)
	if _, err := f.ReadAt(packBuf, ripStart); err != nil {
		return nil, 0, wrap("mxf.ReadRIPAtEOF", ReadFail, err)
	}

	r := klv.NewReader(packBuf)
	key, length, _, err := r.ReadKeyAndLength()
	if err != nil {
		return nil, 0, wrap("mxf.ReadRIPAtEOF", Format, err)
	}
	if !key.Equal(dict.RIPKey) {
		return nil, 0, wrap("mxf.ReadRIPAtEOF", Format, nil)
	}
	if int(length) != len(packBuf)-r.Pos() {
		return nil, 0, wrap("mxf.ReadRIPAtEOF", Format, nil)
	}

	n := (int(length) - 4) / ripEntrySize
	entries := make([]RIPEntry, 0, n)
	for i := 0; i < n; i++ {
		bodySID, err := r.ReadUint32()
		if err != nil {
			return nil, 0, wrap("mxf.ReadRIPAtEOF", ReadFail, err)
		}
		offset, err := r.ReadUint64()
		if err != nil {
			return nil, 0, wrap("mxf.ReadRIPAtEOF", ReadFail, err)
		}
		entries = append(entries, RIPEntry{BodySID: bodySID, Offset: offset})
	}
	return entries, ripStart, nil
}
