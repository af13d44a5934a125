package as02

import (
	"github.com/phastphill/asdcplib/dict"
	"github.com/phastphill/asdcplib/internal/klv"
	"github.com/phastphill/asdcplib/mdstore"
	"github.com/phastphill/asdcplib/mxf"
)

// Header metadata record tags. C4's mxf.HeaderMetadataRecord does not
// interpret payloads; this package owns the tag→type mapping and the
// payload encoding for each object it constructs.
const (
	tagIABEssenceDescriptor byte = iota + 1
	tagIABSoundfieldLabelSubDescriptor
	tagStaticTrack
	tagSequence
	tagDMSegment
	tagTextBasedDMFramework
	tagGenericStreamTextBasedSet
)

// IABEssenceDescriptor describes the single IAB clip-wrapped essence item.
type IABEssenceDescriptor struct {
	InstanceUID_    mdstore.UUID
	EssenceUL       mxf.UL
	EditRate        mxf.Rational
	SampleRate      mxf.Rational
	ContainerFormat mxf.UL
}

func (d *IABEssenceDescriptor) UL() klv.UL             { return dict.IABEssenceDescriptorUL }
func (d *IABEssenceDescriptor) InstanceUID() mdstore.UUID { return d.InstanceUID_ }

func (d *IABEssenceDescriptor) marshal() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, d.EssenceUL[:]...)
	buf = appendRational(buf, d.EditRate)
	buf = appendRational(buf, d.SampleRate)
	buf = append(buf, d.ContainerFormat[:]...)
	return buf
}

func unmarshalIABEssenceDescriptor(id mdstore.UUID, p []byte) (*IABEssenceDescriptor, error) {
	if len(p) < 16+8+8+16 {
		return nil, errShortRecord
	}
	d := &IABEssenceDescriptor{InstanceUID_: id}
	copy(d.EssenceUL[:], p[0:16])
	d.EditRate = readRational(p[16:24])
	d.SampleRate = readRational(p[24:32])
	copy(d.ContainerFormat[:], p[32:48])
	return d, nil
}

// IABSoundfieldLabelSubDescriptor tags the IAB essence with the MCA
// soundfield label "IAB".
type IABSoundfieldLabelSubDescriptor struct {
	InstanceUID_ mdstore.UUID
	MCATagName   string
}

func (d *IABSoundfieldLabelSubDescriptor) UL() klv.UL { return dict.IABSoundfieldLabelSubDescriptorUL }
func (d *IABSoundfieldLabelSubDescriptor) InstanceUID() mdstore.UUID { return d.InstanceUID_ }

func (d *IABSoundfieldLabelSubDescriptor) marshal() []byte {
	return []byte(d.MCATagName)
}

func unmarshalIABSoundfieldLabelSubDescriptor(id mdstore.UUID, p []byte) (*IABSoundfieldLabelSubDescriptor, error) {
	return &IABSoundfieldLabelSubDescriptor{InstanceUID_: id, MCATagName: string(p)}, nil
}

// StaticTrack is a minimal Track: it names a Sequence and carries a
// human-readable TrackName.
type StaticTrack struct {
	InstanceUID_ mdstore.UUID
	TrackName    string
	SequenceUID  mdstore.UUID
}

func (t *StaticTrack) UL() klv.UL             { return dict.StaticTrackUL }
func (t *StaticTrack) InstanceUID() mdstore.UUID { return t.InstanceUID_ }

func (t *StaticTrack) marshal() []byte {
	buf := make([]byte, 0, 16+16+len(t.TrackName))
	buf = append(buf, t.SequenceUID[:]...)
	buf = append(buf, []byte(t.TrackName)...)
	return buf
}

func unmarshalStaticTrack(id mdstore.UUID, p []byte) (*StaticTrack, error) {
	if len(p) < 16 {
		return nil, errShortRecord
	}
	t := &StaticTrack{InstanceUID_: id, TrackName: string(p[16:])}
	copy(t.SequenceUID[:], p[:16])
	return t, nil
}

// Sequence is the empty structural component a StaticTrack points at; a
// clip-wrapped file needs one to satisfy readers that walk Track->Sequence.
type Sequence struct {
	InstanceUID_ mdstore.UUID
}

func (s *Sequence) UL() klv.UL             { return dict.SequenceUL }
func (s *Sequence) InstanceUID() mdstore.UUID { return s.InstanceUID_ }
func (s *Sequence) marshal() []byte        { return nil }

func unmarshalSequence(id mdstore.UUID, p []byte) (*Sequence, error) {
	return &Sequence{InstanceUID_: id}, nil
}

// DMSegment anchors a TextBasedDMFramework to the timeline; here it always
// spans the whole clip, since write_metadata's payloads are file-scoped.
type DMSegment struct {
	InstanceUID_     mdstore.UUID
	FrameworkUID     mdstore.UUID
}

func (s *DMSegment) UL() klv.UL             { return dict.DMSegmentUL }
func (s *DMSegment) InstanceUID() mdstore.UUID { return s.InstanceUID_ }

func (s *DMSegment) marshal() []byte {
	return append([]byte{}, s.FrameworkUID[:]...)
}

func unmarshalDMSegment(id mdstore.UUID, p []byte) (*DMSegment, error) {
	if len(p) < 16 {
		return nil, errShortRecord
	}
	s := &DMSegment{InstanceUID_: id}
	copy(s.FrameworkUID[:], p[:16])
	return s, nil
}

// TextBasedDMFramework carries the free-text Description supplied to
// write_metadata and points at the GenericStreamTextBasedSet holding the
// actual stream identity.
type TextBasedDMFramework struct {
	InstanceUID_     mdstore.UUID
	Description      string
	TextBasedSetUID  mdstore.UUID
}

func (f *TextBasedDMFramework) UL() klv.UL             { return dict.TextBasedDMFrameworkUL }
func (f *TextBasedDMFramework) InstanceUID() mdstore.UUID { return f.InstanceUID_ }

func (f *TextBasedDMFramework) marshal() []byte {
	buf := make([]byte, 0, 16+len(f.Description))
	buf = append(buf, f.TextBasedSetUID[:]...)
	buf = append(buf, []byte(f.Description)...)
	return buf
}

func unmarshalTextBasedDMFramework(id mdstore.UUID, p []byte) (*TextBasedDMFramework, error) {
	if len(p) < 16 {
		return nil, errShortRecord
	}
	f := &TextBasedDMFramework{InstanceUID_: id, Description: string(p[16:])}
	copy(f.TextBasedSetUID[:], p[:16])
	return f, nil
}

// GenericStreamTextBasedSet is the object read_metadata searches by
// Description to find which Generic Stream Partition (by GenericStreamSID,
// carried as this object's BodySID) holds a given payload.
type GenericStreamTextBasedSet struct {
	InstanceUID_     mdstore.UUID
	MIMEType         string
	Description      string
	GenericStreamSID uint32
}

func (g *GenericStreamTextBasedSet) UL() klv.UL             { return dict.GenericStreamTextBasedSetUL }
func (g *GenericStreamTextBasedSet) InstanceUID() mdstore.UUID { return g.InstanceUID_ }

func (g *GenericStreamTextBasedSet) marshal() []byte {
	buf := make([]byte, 0, 4+1+len(g.MIMEType)+1+len(g.Description))
	buf = appendUint32(buf, g.GenericStreamSID)
	buf = append(buf, byte(len(g.MIMEType)))
	buf = append(buf, []byte(g.MIMEType)...)
	buf = append(buf, byte(len(g.Description)))
	buf = append(buf, []byte(g.Description)...)
	return buf
}

func unmarshalGenericStreamTextBasedSet(id mdstore.UUID, p []byte) (*GenericStreamTextBasedSet, error) {
	if len(p) < 5 {
		return nil, errShortRecord
	}
	g := &GenericStreamTextBasedSet{InstanceUID_: id}
	g.GenericStreamSID = klv.ByteOrder.Uint32(p[0:4])
	pos := 4
	mimeLen := int(p[pos])
	pos++
	if pos+mimeLen > len(p) {
		return nil, errShortRecord
	}
	g.MIMEType = string(p[pos : pos+mimeLen])
	pos += mimeLen
	if pos >= len(p) {
		return nil, errShortRecord
	}
	descLen := int(p[pos])
	pos++
	if pos+descLen > len(p) {
		return nil, errShortRecord
	}
	g.Description = string(p[pos : pos+descLen])
	return g, nil
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	klv.ByteOrder.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendRational(b []byte, r mxf.Rational) []byte {
	var tmp [8]byte
	klv.ByteOrder.PutUint32(tmp[0:4], uint32(r.Numerator))
	klv.ByteOrder.PutUint32(tmp[4:8], uint32(r.Denominator))
	return append(b, tmp[:]...)
}

func readRational(b []byte) mxf.Rational {
	return mxf.Rational{
		Numerator:   int32(klv.ByteOrder.Uint32(b[0:4])),
		Denominator: int32(klv.ByteOrder.Uint32(b[4:8])),
	}
}
