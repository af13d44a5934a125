package mxf

import (
	"github.com/phastphill/asdcplib/dict"
	"github.com/phastphill/asdcplib/internal/klv"
)

// HeaderMetadataRecord is one entry of this library's private header
// metadata encoding: a type tag (meaningful only to the profile package
// that wrote it, e.g. as02's IAB object types) plus its raw payload. C4
// itself does not interpret record contents — that knowledge belongs to
// the profile-specific writer/reader (C6) — it only knows how to frame and
// reassemble the record stream, since it must skip past this block to find
// where the essence container begins.
type HeaderMetadataRecord struct {
	Tag     byte
	Payload []byte
}

const berWidthHeaderMetadata = 8

// WriteHeaderMetadata serializes records under dict.HeaderMetadataUL.
func WriteHeaderMetadata(records []HeaderMetadataRecord) []byte {
	value := make([]byte, 0, 64)
	for _, rec := range records {
		value = append(value, rec.Tag)
		value = appendUint32(value, uint32(len(rec.Payload)))
		value = append(value, rec.Payload...)
	}
	buf := make([]byte, klv.KLSize(berWidthHeaderMetadata)+len(value))
	w := klv.NewWriter(buf)
	_ = klv.WriteKL(w, dict.HeaderMetadataUL, uint64(len(value)), berWidthHeaderMetadata)
	_ = w.WriteBytes(value)
	return buf
}

// readHeaderMetadata parses a header metadata KLV (raw KL+Value bytes,
// as returned by readKLVAt) into its records, returning the number of
// bytes consumed.
func readHeaderMetadata(data []byte) ([]HeaderMetadataRecord, int, error) {
	r := klv.NewReader(data)
	key, length, _, err := r.ReadKeyAndLength()
	if err != nil {
		return nil, 0, wrap("mxf.readHeaderMetadata", ReadFail, err)
	}
	if !key.Equal(dict.HeaderMetadataUL) {
		return nil, 0, wrap("mxf.readHeaderMetadata", Format, nil)
	}
	valueStart := r.Pos()
	end := valueStart + int(length)
	if end > len(data) {
		return nil, 0, wrap("mxf.readHeaderMetadata", ReadFail, nil)
	}

	var records []HeaderMetadataRecord
	pos := valueStart
	for pos < end {
		if pos+5 > end {
			return nil, 0, wrap("mxf.readHeaderMetadata", Format, nil)
		}
		tag := data[pos]
		payloadLen := int(klv.ByteOrder.Uint32(data[pos+1 : pos+5]))
		pos += 5
		if pos+payloadLen > end {
			return nil, 0, wrap("mxf.readHeaderMetadata", Format, nil)
		}
		records = append(records, HeaderMetadataRecord{Tag: tag, Payload: data[pos : pos+payloadLen]})
		pos += payloadLen
	}
	return records, end, nil
}
