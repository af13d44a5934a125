// Package dict holds the small set of well-known SMPTE Universal Labels
// this library needs by name: the IAB essence element, the Operational
// Pattern labels, the two Encrypted-Essence variants, and the IMF IAB
// clip-wrapped essence container. It is not a general SMPTE metadata
// dictionary (see Non-goals); it is a static lookup table in the spirit of
// the teacher's ID-manifest lookups, scoped to exactly what this profile
// needs.
package dict

import "github.com/phastphill/asdcplib/internal/klv"

// IMFIABEssenceClipWrappedElement is the essence element UL for IAB audio
// clip-wrapped per ST 2067-201, with the element-number byte (index 13)
// and stream-number byte (index 15) left at their catalog values (0x0e and
// 0x00); callers customize both via WithElementAndStream.
var IMFIABEssenceClipWrappedElement = klv.UL{
	0x06, 0x0e, 0x2b, 0x34, 0x01, 0x02, 0x01, 0x01,
	0x0d, 0x01, 0x03, 0x01, 0x02, 0x0e, 0x00, 0x00,
}

// WithElementAndStream returns a copy of u with the element-number byte
// (index 13) and stream-number byte (index 15) overwritten. C6 sets these
// to 1 and 1 respectively for the single IAB clip-wrapped element.
func WithElementAndStream(u klv.UL, element, stream byte) klv.UL {
	out := u
	out[13] = element
	out[15] = stream
	return out
}

// GenericStreamPayloadElement names the KLV wrapping a write_metadata
// payload inside a Generic Stream Partition; it shares the IAB essence
// element's catalog family but with element-number byte 2, distinguishing a
// metadata stream from the clip-wrapped essence element (byte 1).
var GenericStreamPayloadElement = WithElementAndStream(IMFIABEssenceClipWrappedElement, 2, 1)

// OPAtom is the Operational Pattern Atom (OP-Atom) label used by single-item,
// single-package IAB clip-wrapped files.
var OPAtom = klv.UL{
	0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x01,
	0x0d, 0x01, 0x02, 0x01, 0x10, 0x00, 0x00, 0x00,
}

// CryptEssenceULSMPTE is the SMPTE 429.6 Encrypted Essence element UL.
var CryptEssenceULSMPTE = klv.UL{
	0x06, 0x0e, 0x2b, 0x34, 0x02, 0x04, 0x01, 0x07,
	0x0d, 0x01, 0x03, 0x01, 0x02, 0x0b, 0x01, 0x00,
}

// CryptEssenceULInterop is the MXF-Interop Encrypted Essence element UL.
var CryptEssenceULInterop = klv.UL{
	0x06, 0x0e, 0x2b, 0x34, 0x02, 0x04, 0x01, 0x00,
	0x0d, 0x01, 0x03, 0x01, 0x02, 0x0b, 0x01, 0x00,
}

// IMFIABClipWrappedContainer is the essence container label declared in a
// Header Partition wrapping IAB essence per ST 2067-201.
var IMFIABClipWrappedContainer = klv.UL{
	0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x0d,
	0x0d, 0x01, 0x03, 0x01, 0x02, 0x20, 0x02, 0x00,
}

// IndexTableSegmentUL is the KLV key for an Index Table Segment.
var IndexTableSegmentUL = klv.UL{
	0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
	0x0d, 0x01, 0x02, 0x01, 0x01, 0x10, 0x01, 0x00,
}

// HeaderMetadataUL is the KLV key this library uses to wrap its header
// metadata object graph. It is not a SMPTE-registered key: this library
// does not implement the full MXF local-set/primer metadata encoding (see
// Non-goals), so the object graph C6 needs is serialized with a private,
// internally-consistent TLV encoding under this one KLV instead.
var HeaderMetadataUL = klv.UL{
	0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
	0x0d, 0x01, 0x01, 0x01, 0x01, 0x02, 0x01, 0x00,
}

// IABEssenceDescriptorUL, IABSoundfieldLabelSubDescriptorUL,
// StaticTrackUL, SequenceUL, DMSegmentUL, TextBasedDMFrameworkUL, and
// GenericStreamTextBasedSetUL are the type ULs of the small handful of
// interchange objects package as02's Metadata Store actually constructs and
// looks up (see Non-goals: this is not a general metadata dictionary).
var (
	IABEssenceDescriptorUL = klv.UL{
		0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
		0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x30, 0x00,
	}
	IABSoundfieldLabelSubDescriptorUL = klv.UL{
		0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
		0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x31, 0x00,
	}
	StaticTrackUL = klv.UL{
		0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
		0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x3a, 0x00,
	}
	SequenceUL = klv.UL{
		0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
		0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x0f, 0x00,
	}
	DMSegmentUL = klv.UL{
		0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
		0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x41, 0x00,
	}
	TextBasedDMFrameworkUL = klv.UL{
		0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
		0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x42, 0x00,
	}
	GenericStreamTextBasedSetUL = klv.UL{
		0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
		0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x43, 0x00,
	}
)

// RIPKey is the KLV key of the Random Index Pack.
var RIPKey = klv.UL{
	0x06, 0x0e, 0x2b, 0x34, 0x02, 0x05, 0x01, 0x01,
	0x0d, 0x01, 0x02, 0x01, 0x01, 0x11, 0x01, 0x00,
}

// PartitionPackPrefix is the 13-byte constant prefix shared by every
// partition pack key; the last 3 bytes vary by partition kind and status.
var PartitionPackPrefix = [13]byte{
	0x06, 0x0e, 0x2b, 0x34, 0x02, 0x05, 0x01, 0x01,
	0x0d, 0x01, 0x02, 0x01, 0x01,
}

// entry pairs a UL with a human-readable catalog name, used by Name for the
// EKLV reader's "warn with the UL's catalog name if any" diagnostic.
type entry struct {
	ul   klv.UL
	name string
}

var catalog = []entry{
	{IMFIABEssenceClipWrappedElement, "IMF_IABEssenceClipWrappedElement"},
	{OPAtom, "OperationalPatternAtom"},
	{CryptEssenceULSMPTE, "CryptEssence (SMPTE 429.6)"},
	{CryptEssenceULInterop, "CryptEssence (MXF-Interop)"},
	{IMFIABClipWrappedContainer, "IMF_IABClipWrappedContainer"},
	{IndexTableSegmentUL, "IndexTableSegment"},
	{RIPKey, "RandomIndexPack"},
	{HeaderMetadataUL, "HeaderMetadata"},
	{IABEssenceDescriptorUL, "IABEssenceDescriptor"},
	{IABSoundfieldLabelSubDescriptorUL, "IABSoundfieldLabelSubDescriptor"},
	{StaticTrackUL, "StaticTrack"},
	{SequenceUL, "Sequence"},
	{DMSegmentUL, "DMSegment"},
	{TextBasedDMFrameworkUL, "TextBasedDMFramework"},
	{GenericStreamTextBasedSetUL, "GenericStreamTextBasedSet"},
}

// Name returns the catalog name for a UL, matching modulo the stream-number
// byte, and reports whether a match was found.
func Name(u klv.UL) (string, bool) {
	for _, e := range catalog {
		if e.ul.EqualIgnoringStream(u) {
			return e.name, true
		}
	}
	return "", false
}

// IsCryptEssence reports whether u (masked) names either SMPTE or Interop
// Encrypted Essence.
func IsCryptEssence(u klv.UL) bool {
	return u.EqualIgnoringStream(CryptEssenceULSMPTE) || u.EqualIgnoringStream(CryptEssenceULInterop)
}
