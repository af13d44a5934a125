package mxf

import "github.com/phastphill/asdcplib/internal/klv"

// UL re-exports the wire codec's Universal Label type so callers of this
// package never need to import internal/klv directly.
type UL = klv.UL

// PartitionKind distinguishes the four partition roles this format uses.
type PartitionKind int

const (
	HeaderPartition PartitionKind = iota
	BodyPartitionKind
	FooterPartitionKind
	GenericStreamPartitionKind
)

// LabelSet selects the essence-key and MIC-derivation profile a file was
// written under.
type LabelSet int

const (
	LabelSetUnknown LabelSet = iota
	LabelSetMXFInterop
	LabelSetMXFSMPTE
)

// Partition is the structural record read from (or written to) a
// Partition Pack, holding the minimum fields this profile's read/write
// path depends on.
type Partition struct {
	Kind                 PartitionKind
	MajorVersion         uint16
	MinorVersion         uint16
	ThisPartition        uint64
	PreviousPartition    uint64
	FooterPartition      uint64
	OperationalPattern   UL
	BodySID              uint32
	IndexSID             uint32
	EssenceContainers    []UL
	HeaderByteCount      uint64
	IndexByteCount       uint64
	BodyOffset           uint64
}

// RIPEntry is one (BodySID, byte-offset) pair from the trailing Random
// Index Pack.
type RIPEntry struct {
	BodySID uint32
	Offset  uint64
}

// IndexEntry is one dense frame-number-keyed entry of the Index Table: the
// byte offset (relative to the start of the essence container's value)
// at which that frame's KLV begins, plus the SMPTE housekeeping fields
// carried alongside it.
type IndexEntry struct {
	StreamOffset     uint64
	TemporalOffset   int8
	KeyFrameOffset   int8
	Flags            uint8
}

// WriterInfo is the aggregated per-file policy governing both the crypto
// envelope and the essence-key profile used when writing or validating a
// file.
type WriterInfo struct {
	LabelSet         LabelSet
	AssetUUID        [16]byte
	ContextID        [16]byte
	HasContextID     bool
	EncryptedEssence bool
	UsesHMAC         bool
}

// Validate enforces the UsesHMAC ⇒ EncryptedEssence invariant.
func (w WriterInfo) Validate() error {
	if w.UsesHMAC && !w.EncryptedEssence {
		return wrap("mxf.WriterInfo.Validate", Fail, errUsesHMACWithoutEncryption)
	}
	return nil
}
