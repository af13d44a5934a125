package mxf

import (
	"github.com/phastphill/asdcplib/dict"
	"github.com/phastphill/asdcplib/internal/klv"
)

// The partitionKind* constants fill byte 13 of a Partition Pack key (after
// dict.PartitionPackPrefix) to select the partition role it names;
// partitionKey sets the status byte (index 14) separately.
const (
	partitionKindHeader        byte = 0x02
	partitionKindBody          byte = 0x03
	partitionKindGenericStream byte = 0x03 // shares the Body role; distinguished by BodySID
	partitionKindFooter        byte = 0x04
)

// partitionKey builds the 16-byte Partition Pack key for kind, using the
// "closed and complete" status byte (0x04) for header/body/footer alike;
// this profile's writer never emits an open or incomplete partition.
func partitionKey(kind PartitionKind) klv.UL {
	var u klv.UL
	copy(u[:13], dict.PartitionPackPrefix[:])
	switch kind {
	case HeaderPartition:
		u[13] = partitionKindHeader
	case BodyPartitionKind, GenericStreamPartitionKind:
		u[13] = partitionKindBody
	case FooterPartitionKind:
		u[13] = partitionKindFooter
	}
	u[14] = 0x04 // closed, complete
	u[15] = 0x00
	return u
}

// berWidthPartition is the BER length-octet width this writer uses for
// every Partition Pack it emits; large enough that essence-container lists
// and byte counts never overflow it.
const berWidthPartition = 8

// FooterFieldOffset is the byte offset, relative to a Partition Pack's own
// KL start, of its 8-byte big-endian FooterPartition field. A writer that
// learns the Footer's real file offset only after the Header Partition has
// already been flushed computes the absolute back-patch position as
// headerPartitionPos + FooterFieldOffset.
const FooterFieldOffset = 16 + 1 + berWidthPartition + 2 + 2 + 4 + 8 + 8

// WritePartitionPack serializes p as a KLV packet and returns the encoded
// bytes.
func WritePartitionPack(p Partition) ([]byte, error) {
	value := make([]byte, 0, 128)
	value = appendUint16(value, p.MajorVersion)
	value = appendUint16(value, p.MinorVersion)
	value = appendUint32(value, 0x00010000) // KAGSize, fixed at 64K-aligned default
	value = appendUint64(value, p.ThisPartition)
	value = appendUint64(value, p.PreviousPartition)
	value = appendUint64(value, p.FooterPartition)
	value = appendUint64(value, p.HeaderByteCount)
	value = appendUint64(value, p.IndexByteCount)
	value = appendUint32(value, p.IndexSID)
	value = appendUint64(value, p.BodyOffset)
	value = appendUint32(value, p.BodySID)
	value = append(value, p.OperationalPattern[:]...)
	value = appendUint32(value, uint32(len(p.EssenceContainers)))
	value = appendUint32(value, klv.ULLength)
	for _, ul := range p.EssenceContainers {
		value = append(value, ul[:]...)
	}

	buf := make([]byte, klv.KLSize(berWidthPartition)+len(value))
	w := klv.NewWriter(buf)
	if err := klv.WriteKL(w, partitionKey(p.Kind), uint64(len(value)), berWidthPartition); err != nil {
		return nil, wrap("mxf.WritePartitionPack", Fail, err)
	}
	if err := w.WriteBytes(value); err != nil {
		return nil, wrap("mxf.WritePartitionPack", Fail, err)
	}
	return buf, nil
}

// ReadPartitionPack parses a Partition Pack from data, which must start
// exactly at the pack's KL.
func ReadPartitionPack(data []byte) (Partition, int, error) {
	r := klv.NewReader(data)
	key, length, _, err := r.ReadKeyAndLength()
	if err != nil {
		return Partition{}, 0, wrap("mxf.ReadPartitionPack", ReadFail, err)
	}
	if !matchesPartitionPrefix(key) {
		return Partition{}, 0, wrap("mxf.ReadPartitionPack", Format, nil)
	}

	var p Partition
	switch key[13] {
	case partitionKindHeader:
		p.Kind = HeaderPartition
	case partitionKindBody:
		p.Kind = BodyPartitionKind
	case partitionKindFooter:
		p.Kind = FooterPartitionKind
	default:
		return Partition{}, 0, wrap("mxf.ReadPartitionPack", Format, nil)
	}

	valueStart := r.Pos()
	if valueStart+int(length) > len(data) {
		return Partition{}, 0, wrap("mxf.ReadPartitionPack", ReadFail, nil)
	}

	var readErr error
	must := func(f func() error) {
		if readErr == nil {
			readErr = f()
		}
	}
	must(func() (e error) { p.MajorVersion, e = readU16(r); return })
	must(func() (e error) { p.MinorVersion, e = readU16(r); return })
	must(func() error { return r.Skip(4) }) // KAGSize
	must(func() (e error) { p.ThisPartition, e = r.ReadUint64(); return })
	must(func() (e error) { p.PreviousPartition, e = r.ReadUint64(); return })
	must(func() (e error) { p.FooterPartition, e = r.ReadUint64(); return })
	must(func() (e error) { p.HeaderByteCount, e = r.ReadUint64(); return })
	must(func() (e error) { p.IndexByteCount, e = r.ReadUint64(); return })
	must(func() (e error) { p.IndexSID, e = r.ReadUint32(); return })
	must(func() (e error) { p.BodyOffset, e = r.ReadUint64(); return })
	must(func() (e error) { p.BodySID, e = r.ReadUint32(); return })
	must(func() (e error) { p.OperationalPattern, e = r.ReadUL(); return })
	var count, itemSize uint32
	must(func() (e error) { count, e = r.ReadUint32(); return })
	must(func() (e error) { itemSize, e = r.ReadUint32(); return })
	if readErr != nil {
		return Partition{}, 0, wrap("mxf.ReadPartitionPack", ReadFail, readErr)
	}
	if itemSize != klv.ULLength && count != 0 {
		return Partition{}, 0, wrap("mxf.ReadPartitionPack", Format, nil)
	}
	p.EssenceContainers = make([]UL, 0, count)
	for i := uint32(0); i < count; i++ {
		ul, err := r.ReadUL()
		if err != nil {
			return Partition{}, 0, wrap("mxf.ReadPartitionPack", ReadFail, err)
		}
		p.EssenceContainers = append(p.EssenceContainers, ul)
	}

	return p, valueStart + int(length), nil
}

func matchesPartitionPrefix(u klv.UL) bool {
	for i, b := range dict.PartitionPackPrefix {
		if u[i] != b {
			return false
		}
	}
	return true
}

func readU16(r *klv.Reader) (uint16, error) { return r.ReadUint16() }

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
