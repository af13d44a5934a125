package mxf

import (
	"bytes"
	"testing"
)

func TestHeaderMetadataRoundTrip(t *testing.T) {
	records := []HeaderMetadataRecord{
		{Tag: 1, Payload: []byte("first")},
		{Tag: 2, Payload: []byte{}},
		{Tag: 3, Payload: bytes.Repeat([]byte{0xaa}, 300)},
	}

	buf := WriteHeaderMetadata(records)
	got, consumed, err := readHeaderMetadata(buf)
	if err != nil {
		t.Fatalf("readHeaderMetadata: %v", err)
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i, rec := range records {
		if got[i].Tag != rec.Tag || !bytes.Equal(got[i].Payload, rec.Payload) {
			t.Errorf("record %d = %+v, want %+v", i, got[i], rec)
		}
	}
}

func TestReadHeaderMetadataRejectsWrongKey(t *testing.T) {
	buf := make([]byte, 32)
	if _, _, err := readHeaderMetadata(buf); err == nil {
		t.Errorf("readHeaderMetadata on all-zero data succeeded, want an error")
	}
}

func TestReadHeaderMetadataRejectsTruncatedRecord(t *testing.T) {
	records := []HeaderMetadataRecord{{Tag: 1, Payload: []byte("hello")}}
	buf := WriteHeaderMetadata(records)
	if _, _, err := readHeaderMetadata(buf[:len(buf)-2]); err == nil {
		t.Errorf("readHeaderMetadata on truncated data succeeded, want an error")
	}
}
