package mxf

import "testing"

func TestIndexTableSegmentRoundTripExplicitEntries(t *testing.T) {
	seg := IndexTableSegment{
		IndexEditRate:      Rational{Numerator: 24, Denominator: 1},
		IndexStartPosition: 0,
		IndexDuration:      3,
		EditUnitByteCount:  0,
		IndexSID:           1,
		BodySID:            1,
		Entries: []IndexEntry{
			{StreamOffset: 0, TemporalOffset: 0, KeyFrameOffset: 0, Flags: 0x80},
			{StreamOffset: 1024, TemporalOffset: -1, KeyFrameOffset: -1, Flags: 0x00},
			{StreamOffset: 2048, TemporalOffset: 0, KeyFrameOffset: 0, Flags: 0x80},
		},
	}

	buf := WriteIndexTableSegment(seg)
	got, consumed, err := ReadIndexTableSegment(buf)
	if err != nil {
		t.Fatalf("ReadIndexTableSegment: %v", err)
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
	if got.IndexEditRate != seg.IndexEditRate {
		t.Errorf("IndexEditRate = %+v, want %+v", got.IndexEditRate, seg.IndexEditRate)
	}
	if got.IndexDuration != seg.IndexDuration {
		t.Errorf("IndexDuration = %d, want %d", got.IndexDuration, seg.IndexDuration)
	}
	if len(got.Entries) != len(seg.Entries) {
		t.Fatalf("got %d entries, want %d", len(got.Entries), len(seg.Entries))
	}
	for i, e := range seg.Entries {
		if got.Entries[i] != e {
			t.Errorf("entry %d = %+v, want %+v", i, got.Entries[i], e)
		}
	}
}

func TestIndexTableSegmentConstantStrideCarriesNoEntries(t *testing.T) {
	seg := IndexTableSegment{
		IndexEditRate:     Rational{Numerator: 25, Denominator: 1},
		IndexDuration:     10,
		EditUnitByteCount: 4096,
		IndexSID:          1,
		BodySID:           1,
	}
	buf := WriteIndexTableSegment(seg)
	got, _, err := ReadIndexTableSegment(buf)
	if err != nil {
		t.Fatalf("ReadIndexTableSegment: %v", err)
	}
	if got.EditUnitByteCount != 4096 {
		t.Errorf("EditUnitByteCount = %d, want 4096", got.EditUnitByteCount)
	}
	if len(got.Entries) != 0 {
		t.Errorf("Entries = %v, want empty for a constant-stride segment", got.Entries)
	}
}

func TestReadIndexTableSegmentRejectsWrongKey(t *testing.T) {
	buf := make([]byte, 32)
	if _, _, err := ReadIndexTableSegment(buf); err == nil {
		t.Errorf("ReadIndexTableSegment on all-zero data succeeded, want an error")
	}
}
