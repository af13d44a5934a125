package mxf

import (
	"github.com/phastphill/asdcplib/dict"
	"github.com/phastphill/asdcplib/internal/klv"
)

// Rational is a Numerator/Denominator pair, used for the Index Table's
// edit rate.
type Rational struct {
	Numerator   int32
	Denominator int32
}

// indexEntrySize is the encoded size of one explicit Index Entry: temporal
// offset (1), key-frame offset (1), flags (1), stream offset (8).
const indexEntrySize = 1 + 1 + 1 + 8

const berWidthIndex = 8

// IndexTableSegment is one Index Table Segment as written into the Footer
// Partition. When EditUnitByteCount is non-zero, the segment describes a
// constant-stride clip and carries no explicit entries; the loader
// synthesizes its IndexEntry values when it loads the index. Otherwise Entries holds one
// explicit IndexEntry per frame, dense from frame 0.
type IndexTableSegment struct {
	IndexEditRate     Rational
	IndexStartPosition int64
	IndexDuration      int64
	EditUnitByteCount  uint32
	IndexSID           uint32
	BodySID            uint32
	Entries            []IndexEntry
}

// WriteIndexTableSegment serializes seg as a KLV packet.
func WriteIndexTableSegment(seg IndexTableSegment) []byte {
	value := make([]byte, 0, 64+len(seg.Entries)*indexEntrySize)
	value = appendUint32(value, uint32(seg.IndexEditRate.Numerator))
	value = appendUint32(value, uint32(seg.IndexEditRate.Denominator))
	value = appendUint64(value, uint64(seg.IndexStartPosition))
	value = appendUint64(value, uint64(seg.IndexDuration))
	value = appendUint32(value, seg.EditUnitByteCount)
	value = appendUint32(value, seg.IndexSID)
	value = appendUint32(value, seg.BodySID)
	value = appendUint32(value, uint32(len(seg.Entries)))
	value = appendUint32(value, indexEntrySize)
	for _, e := range seg.Entries {
		value = append(value, byte(e.TemporalOffset), byte(e.KeyFrameOffset), e.Flags)
		value = appendUint64(value, e.StreamOffset)
	}

	buf := make([]byte, klv.KLSize(berWidthIndex)+len(value))
	w := klv.NewWriter(buf)
	_ = klv.WriteKL(w, dict.IndexTableSegmentUL, uint64(len(value)), berWidthIndex)
	_ = w.WriteBytes(value)
	return buf
}

// ReadIndexTableSegment parses one Index Table Segment starting at data[0].
// It returns the segment and the number of bytes consumed.
func ReadIndexTableSegment(data []byte) (IndexTableSegment, int, error) {
	r := klv.NewReader(data)
	key, length, _, err := r.ReadKeyAndLength()
	if err != nil {
		return IndexTableSegment{}, 0, wrap("mxf.ReadIndexTableSegment", ReadFail, err)
	}
	if !key.Equal(dict.IndexTableSegmentUL) {
		return IndexTableSegment{}, 0, wrap("mxf.ReadIndexTableSegment", Format, nil)
	}
	valueStart := r.Pos()
	if valueStart+int(length) > len(data) {
		return IndexTableSegment{}, 0, wrap("mxf.ReadIndexTableSegment", ReadFail, nil)
	}

	var seg IndexTableSegment
	var num, den uint32
	var readErr error
	must := func(f func() error) {
		if readErr == nil {
			readErr = f()
		}
	}
	must(func() (e error) { num, e = r.ReadUint32(); return })
	must(func() (e error) { den, e = r.ReadUint32(); return })
	var startPos, dur uint64
	must(func() (e error) { startPos, e = r.ReadUint64(); return })
	must(func() (e error) { dur, e = r.ReadUint64(); return })
	must(func() (e error) { seg.EditUnitByteCount, e = r.ReadUint32(); return })
	must(func() (e error) { seg.IndexSID, e = r.ReadUint32(); return })
	must(func() (e error) { seg.BodySID, e = r.ReadUint32(); return })
	var count, itemSize uint32
	must(func() (e error) { count, e = r.ReadUint32(); return })
	must(func() (e error) { itemSize, e = r.ReadUint32(); return })
	if readErr != nil {
		return IndexTableSegment{}, 0, wrap("mxf.ReadIndexTableSegment", ReadFail, readErr)
	}
	seg.IndexEditRate = Rational{Numerator: int32(num), Denominator: int32(den)}
	seg.IndexStartPosition = int64(startPos)
	seg.IndexDuration = int64(dur)

	if count > 0 && itemSize != indexEntrySize {
		return IndexTableSegment{}, 0, wrap("mxf.ReadIndexTableSegment", Format, nil)
	}
	seg.Entries = make([]IndexEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		to, err := r.ReadByte()
		must1(&readErr, err)
		kfo, err := r.ReadByte()
		must1(&readErr, err)
		flags, err := r.ReadByte()
		must1(&readErr, err)
		off, err := r.ReadUint64()
		must1(&readErr, err)
		if readErr != nil {
			return IndexTableSegment{}, 0, wrap("mxf.ReadIndexTableSegment", ReadFail, readErr)
		}
		seg.Entries = append(seg.Entries, IndexEntry{
			StreamOffset:   off,
			TemporalOffset: int8(to),
			KeyFrameOffset: int8(kfo),
			Flags:          flags,
		})
	}

	return seg, valueStart + int(length), nil
}

func must1(dst *error, err error) {
	if *dst == nil {
		*dst = err
	}
}
