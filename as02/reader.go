package as02

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/phastphill/asdcplib/dict"
	"github.com/phastphill/asdcplib/internal/aescbc"
	"github.com/phastphill/asdcplib/internal/klv"
	"github.com/phastphill/asdcplib/internal/mic"
	"github.com/phastphill/asdcplib/mdstore"
	"github.com/phastphill/asdcplib/mxf"
)

// Reader implements C6's reader half: it drives mxf.Reader (C4) to bootstrap
// the partition/index/header-metadata structures, then owns its own
// preamble-TL/frame-TL framing over the clip's raw byte range — the IAB
// clip is one big essence KLV with no per-frame KL to dispatch on, so it
// does not go through mxf.ReadFrame (C5).
type Reader struct {
	mr    *mxf.Reader
	store *mdstore.Store
	info  mxf.WriterInfo

	stream         mxf.RandomAccessStream
	clipValueStart int64

	aesEng  *aescbc.Engine
	hmacEng *mic.Engine

	currentFrameIndex int
	currentBuf        []byte
}

// readProbeSize is a generous single-read size for the partition/KL probes
// read_metadata performs when locating a Generic Stream Partition.
const readProbeSize = 1 << 16

// OpenRead runs open_read: C4's OpenRead + LoadIndex, then verifies exactly
// one IABEssenceDescriptor, at least one IABSoundfieldLabelSubDescriptor,
// and at least one Track are present. contentKey is required only when
// info.EncryptedEssence, to decrypt write_metadata's Generic Stream
// payloads via ReadMetadata.
func OpenRead(stream mxf.RandomAccessStream, closer io.Closer, size int64, info mxf.WriterInfo, contentKey [16]byte) (*Reader, error) {
	mr, err := mxf.OpenReadFile(stream, closer, size)
	if err != nil {
		return nil, wrap("as02.OpenRead", Init, err)
	}
	if err := mr.LoadIndex(); err != nil {
		mr.Close()
		return nil, wrap("as02.OpenRead", Init, err)
	}

	store, err := decodeHeaderMetadata(mr.HeaderMetadata)
	if err != nil {
		mr.Close()
		return nil, wrap("as02.OpenRead", Format, err)
	}
	if len(store.GetAllByType(dict.IABEssenceDescriptorUL)) != 1 {
		mr.Close()
		return nil, wrap("as02.OpenRead", Format, nil)
	}
	if len(store.GetAllByType(dict.IABSoundfieldLabelSubDescriptorUL)) < 1 {
		mr.Close()
		return nil, wrap("as02.OpenRead", Format, nil)
	}
	if len(store.GetAllByType(dict.StaticTrackUL)) < 1 {
		mr.Close()
		return nil, wrap("as02.OpenRead", Format, nil)
	}

	r := &Reader{
		mr:                mr,
		store:             store,
		info:              info,
		stream:            stream,
		clipValueStart:    mr.EssenceStart() + int64(klv.KLSize(8)),
		currentFrameIndex: -1,
	}

	if info.EncryptedEssence {
		r.aesEng = aescbc.New()
		if err := r.aesEng.InitDecrypt(contentKey[:]); err != nil {
			mr.Close()
			return nil, wrap("as02.OpenRead", CryptInit, err)
		}
		if info.UsesHMAC {
			var derived [mic.KeyLen]byte
			var derr error
			if info.LabelSet == mxf.LabelSetMXFInterop {
				derived, derr = mic.DeriveKeyInterop(contentKey[:])
			} else {
				derived, derr = mic.DeriveKeySMPTE(contentKey[:])
			}
			if derr != nil {
				mr.Close()
				return nil, wrap("as02.OpenRead", CryptInit, derr)
			}
			r.hmacEng = mic.New()
			r.hmacEng.SetKey(derived)
		}
	}

	return r, nil
}

// Close releases the underlying mxf.Reader's file handle.
func (r *Reader) Close() error { return r.mr.Close() }

// FrameCount reports the number of frames the loaded index describes.
func (r *Reader) FrameCount() int { return r.mr.FrameCount() }

// Descriptor returns the file's single IABEssenceDescriptor, and whether
// open_read's presence check found one (it always does for a Reader
// returned by OpenRead, since OpenRead fails otherwise).
func (r *Reader) Descriptor() (*IABEssenceDescriptor, bool) {
	objs := r.store.GetAllByType(dict.IABEssenceDescriptorUL)
	if len(objs) == 0 {
		return nil, false
	}
	d, ok := objs[0].(*IABEssenceDescriptor)
	return d, ok
}

// Tracks returns every StaticTrack registered in the file's header metadata,
// including any added by write_metadata calls after the clip essence.
func (r *Reader) Tracks() []*StaticTrack {
	var out []*StaticTrack
	for _, obj := range r.store.GetAllByType(dict.StaticTrackUL) {
		if t, ok := obj.(*StaticTrack); ok {
			out = append(out, t)
		}
	}
	return out
}

// MetadataStreams returns every GenericStreamTextBasedSet registered by a
// write_metadata call, describing the side-channel streams read_metadata
// can look up by Description.
func (r *Reader) MetadataStreams() []*GenericStreamTextBasedSet {
	var out []*GenericStreamTextBasedSet
	for _, obj := range r.store.GetAllByType(dict.GenericStreamTextBasedSetUL) {
		if g, ok := obj.(*GenericStreamTextBasedSet); ok {
			out = append(out, g)
		}
	}
	return out
}

// ReadFrame implements read_frame: it returns the exact concatenation of
// one indexed entry's preamble-TL, preamble, frame-TL, and frame bytes,
// serving the cached buffer on a repeat request for the same frame. Per the
// short-read caveat in the design notes, any read failure leaves the cache
// untouched (it is never updated before every byte has been read
// successfully) rather than partially advancing it.
func (r *Reader) ReadFrame(n int) ([]byte, error) {
	if n == r.currentFrameIndex {
		return r.currentBuf, nil
	}
	entry, err := r.mr.Lookup(uint32(n))
	if err != nil {
		return nil, wrap("as02.Reader.ReadFrame", Range, err)
	}
	abs := r.clipValueStart + int64(entry.StreamOffset)

	var preambleTL [5]byte
	if _, err := r.stream.ReadAt(preambleTL[:], abs); err != nil {
		return nil, wrap("as02.Reader.ReadFrame", ReadFail, err)
	}
	preambleLen := int64(klv.ByteOrder.Uint32(preambleTL[1:5]))

	var frameTL [5]byte
	if _, err := r.stream.ReadAt(frameTL[:], abs+5+preambleLen); err != nil {
		return nil, wrap("as02.Reader.ReadFrame", ReadFail, err)
	}
	frameLen := int64(klv.ByteOrder.Uint32(frameTL[1:5]))

	total := 5 + preambleLen + 5 + frameLen
	buf := make([]byte, total)
	if _, err := r.stream.ReadAt(buf, abs); err != nil {
		return nil, wrap("as02.Reader.ReadFrame", ReadFail, err)
	}

	r.currentBuf = buf
	r.currentFrameIndex = n
	return buf, nil
}

// ReadMetadata implements read_metadata: it searches the header's
// GenericStreamTextBasedSet objects for one matching description, uses its
// GenericStreamSID to find the RIP entry naming that partition, and reads
// the single KLV it carries into out.
func (r *Reader) ReadMetadata(description string, out *mxf.FrameBuf) error {
	var target *GenericStreamTextBasedSet
	for _, obj := range r.store.GetAllByType(dict.GenericStreamTextBasedSetUL) {
		if g, ok := obj.(*GenericStreamTextBasedSet); ok && g.Description == description {
			target = g
			break
		}
	}
	if target == nil {
		return wrap("as02.Reader.ReadMetadata", Format, nil)
	}

	var offset int64 = -1
	for _, e := range r.mr.RIP {
		if e.BodySID == target.GenericStreamSID {
			offset = int64(e.Offset)
			break
		}
	}
	if offset < 0 {
		return wrap("as02.Reader.ReadMetadata", Format, nil)
	}

	partitionKLV, err := readKLVAtProbe(r.stream, offset)
	if err != nil {
		return wrap("as02.Reader.ReadMetadata", ReadFail, err)
	}
	_, consumed, err := mxf.ReadPartitionPack(partitionKLV)
	if err != nil {
		return wrap("as02.Reader.ReadMetadata", Format, err)
	}

	payloadKLV, err := readKLVAtProbe(r.stream, offset+int64(consumed))
	if err != nil {
		return wrap("as02.Reader.ReadMetadata", ReadFail, err)
	}
	kr := klv.NewReader(payloadKLV)
	key, length, klConsumed, err := kr.ReadKeyAndLength()
	if err != nil {
		return wrap("as02.Reader.ReadMetadata", Format, err)
	}
	if klConsumed+int(length) > len(payloadKLV) {
		return wrap("as02.Reader.ReadMetadata", Format, nil)
	}
	body := payloadKLV[klConsumed : klConsumed+int(length)]

	var tagged []byte
	if dict.IsCryptEssence(key) {
		scratch := mxf.FrameBuf{Data: make([]byte, length)}
		if err := mxf.DecryptTriplet(body, dict.GenericStreamPayloadElement, r.info, 0, &scratch, r.aesEng, r.hmacEng); err != nil {
			return err
		}
		tagged = scratch.Data[:scratch.Size]
	} else {
		tagged = body
	}
	if len(tagged) == 0 {
		return wrap("as02.Reader.ReadMetadata", Format, nil)
	}

	var plain []byte
	switch tagged[0] {
	case tagZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return wrap("as02.Reader.ReadMetadata", Fail, err)
		}
		plain, err = dec.DecodeAll(tagged[1:], nil)
		dec.Close()
		if err != nil {
			return wrap("as02.Reader.ReadMetadata", Format, err)
		}
	case tagRaw:
		plain = tagged[1:]
	default:
		return wrap("as02.Reader.ReadMetadata", Format, nil)
	}

	if len(out.Data) < len(plain) {
		return wrap("as02.Reader.ReadMetadata", SmallBuf, nil)
	}
	copy(out.Data, plain)
	out.Size = len(plain)
	return nil
}

// readKLVAtProbe reads one KLV packet (key, BER length, value) starting at
// abs, growing beyond the initial probe only when the encoded length
// demands it. It mirrors package mxf's own bootstrap probe (see loader.go)
// but stays local to this package since a Reader here reads at arbitrary
// Generic Stream Partition offsets outside mxf.Reader's own index.
func readKLVAtProbe(f io.ReaderAt, abs int64) ([]byte, error) {
	probe := make([]byte, readProbeSize)
	n, err := f.ReadAt(probe, abs)
	if n == 0 && err != nil {
		return nil, err
	}
	probe = probe[:n]
	if len(probe) < 17 {
		return nil, io.ErrUnexpectedEOF
	}
	first := probe[16]
	var berWidth int
	if first >= 0x80 {
		berWidth = int(first & 0x7f)
	}
	klSize := 17 + berWidth
	if len(probe) < klSize {
		return nil, io.ErrUnexpectedEOF
	}
	var length uint64
	if first < 0x80 {
		length = uint64(first)
	} else {
		for _, b := range probe[17:klSize] {
			length = length<<8 | uint64(b)
		}
	}
	total := klSize + int(length)
	if total <= len(probe) {
		return probe[:total], nil
	}
	full := make([]byte, total)
	if _, err := f.ReadAt(full, abs); err != nil {
		return nil, err
	}
	return full, nil
}
