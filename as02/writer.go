package as02

import (
	"crypto/rand"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/phastphill/asdcplib/dict"
	"github.com/phastphill/asdcplib/internal/aescbc"
	"github.com/phastphill/asdcplib/internal/klv"
	"github.com/phastphill/asdcplib/internal/mic"
	"github.com/phastphill/asdcplib/jp2k"
	"github.com/phastphill/asdcplib/mdstore"
	"github.com/phastphill/asdcplib/mxf"
)

// compressionTag prefixes every write_metadata payload by one byte:
// tagRaw marks an unmodified payload, tagZstd marks a zstd-compressed one.
// read_metadata strips and interprets this byte after decryption (if any).
const (
	tagRaw  byte = 0x00
	tagZstd byte = 0x01
)

// WriteStream is the file I/O collaborator a Writer consumes: sequential
// Write plus the Seek needed to back-patch the clip's length and, on
// finalize, the Header Partition's FooterPartition field.
type WriteStream interface {
	io.Writer
	io.Seeker
}

type writerState int

const (
	stateBegin writerState = iota
	stateReady
	stateRunning
)

// Writer drives the C6 lifecycle: Begin -> Ready -> Running, around a
// single clip-wrapped IAB essence KLV with a back-patched length and
// per-frame index entries, plus any number of write_metadata Generic Stream
// side-channels.
type Writer struct {
	state  writerState
	stream WriteStream
	closer io.Closer
	pos    int64

	info       mxf.WriterInfo
	editRate   mxf.Rational
	sampleRate mxf.Rational
	essenceUL  mxf.UL
	aesEng     *aescbc.Engine
	hmacEng    *mic.Engine

	headerPos        int64
	clipStart        int64
	streamOffset     uint64
	frameCount       int
	entries          []mxf.IndexEntry
	lastPartitionPos int64
	genericStreamID  uint32
	ripEntries       []mxf.RIPEntry
	conformsTo       []mxf.UL

	store *mdstore.Store
}

// New returns a Writer in state Begin.
func New() *Writer {
	return &Writer{}
}

// Open runs open_write: writes the Header Partition (with the supplied IAB
// descriptor chain), reserves the clip's placeholder KL, and transitions
// Begin -> Ready. contentKey is the 128-bit key used only to encrypt
// write_metadata's Generic Stream payloads when info.EncryptedEssence is
// set — the clip-wrapped essence itself is never EKLV-wrapped (see C6's
// write_frame/read_frame, which move raw preamble/frame TLV bytes with no
// triplet framing). Any failure resets the Writer to Begin and releases the
// stream.
func (w *Writer) Open(stream WriteStream, closer io.Closer, info mxf.WriterInfo, contentKey [16]byte, subdescriptor *IABSoundfieldLabelSubDescriptor, conformsTo []mxf.UL, editRate, sampleRate mxf.Rational) error {
	if w.state != stateBegin {
		return wrap("as02.Writer.Open", State, nil)
	}
	if err := info.Validate(); err != nil {
		return wrap("as02.Writer.Open", Init, err)
	}

	w.stream = stream
	w.closer = closer
	w.info = info
	w.editRate = editRate
	w.sampleRate = sampleRate
	w.conformsTo = conformsTo
	w.essenceUL = dict.WithElementAndStream(dict.IMFIABEssenceClipWrappedElement, 1, 1)
	w.genericStreamID = 2 // BodySID 1 is the essence container; generic streams start at 2.

	if info.EncryptedEssence {
		w.aesEng = aescbc.New()
		if err := w.aesEng.InitEncrypt(contentKey[:]); err != nil {
			w.reset()
			return wrap("as02.Writer.Open", CryptInit, err)
		}
		if info.UsesHMAC {
			var derived [mic.KeyLen]byte
			var err error
			if info.LabelSet == mxf.LabelSetMXFInterop {
				derived, err = mic.DeriveKeyInterop(contentKey[:])
			} else {
				derived, err = mic.DeriveKeySMPTE(contentKey[:])
			}
			if err != nil {
				w.reset()
				return wrap("as02.Writer.Open", CryptInit, err)
			}
			w.hmacEng = mic.New()
			w.hmacEng.SetKey(derived)
		}
	}

	if err := w.writeHeader(subdescriptor); err != nil {
		w.reset()
		return err
	}

	w.clipStart = w.pos
	if err := w.writePlaceholderKL(); err != nil {
		w.reset()
		return err
	}
	w.streamOffset = 0
	w.state = stateReady
	logger.Debug("as02: writer opened", "encrypted", info.EncryptedEssence, "editRate", editRate)
	return nil
}

func (w *Writer) writeHeader(subdescriptor *IABSoundfieldLabelSubDescriptor) error {
	descriptor := &IABEssenceDescriptor{
		InstanceUID_:    newUUID(),
		EssenceUL:       w.essenceUL,
		EditRate:        w.editRate,
		SampleRate:      w.sampleRate,
		ContainerFormat: dict.IMFIABClipWrappedContainer,
	}
	if subdescriptor.InstanceUID_ == (mdstore.UUID{}) {
		subdescriptor.InstanceUID_ = newUUID()
	}
	sequence := &Sequence{InstanceUID_: newUUID()}
	track := &StaticTrack{InstanceUID_: newUUID(), TrackName: "IAB", SequenceUID: sequence.InstanceUID_}

	store := mdstore.New()
	store.Add(descriptor)
	store.AddChild(descriptor, subdescriptor)
	store.Add(track)
	store.AddChild(track, sequence)
	w.store = store

	partition := mxf.Partition{
		Kind:               mxf.HeaderPartition,
		MajorVersion:       1,
		MinorVersion:       3,
		OperationalPattern: dict.OPAtom,
		BodySID:            1,
		IndexSID:           1,
		EssenceContainers:  append([]mxf.UL{dict.IMFIABClipWrappedContainer}, w.conformsTo...),
	}
	pack, err := mxf.WritePartitionPack(partition)
	if err != nil {
		return wrap("as02.Writer.Open", Fail, err)
	}
	w.headerPos = w.pos
	if err := w.writeBytes(pack); err != nil {
		return err
	}

	records, err := encodeHeaderMetadata(w.store.GetAllByType(descriptor.UL()))
	if err != nil {
		return wrap("as02.Writer.Open", Fail, err)
	}
	trackRecords, err := encodeHeaderMetadata(w.store.GetAllByType(track.UL()))
	if err != nil {
		return wrap("as02.Writer.Open", Fail, err)
	}
	subRecords, err := encodeHeaderMetadata(w.store.GetAllByType(subdescriptor.UL()))
	if err != nil {
		return wrap("as02.Writer.Open", Fail, err)
	}
	seqRecords, err := encodeHeaderMetadata(w.store.GetAllByType(sequence.UL()))
	if err != nil {
		return wrap("as02.Writer.Open", Fail, err)
	}
	all := append(append(append(records, subRecords...), trackRecords...), seqRecords...)
	if err := w.writeBytes(mxf.WriteHeaderMetadata(all)); err != nil {
		return err
	}
	w.lastPartitionPos = w.headerPos
	return nil
}

func (w *Writer) writePlaceholderKL() error {
	buf := make([]byte, klv.KLSize(8))
	kw := klv.NewWriter(buf)
	if err := klv.WriteKL(kw, w.essenceUL, 0, 8); err != nil {
		return wrap("as02.Writer.Open", Fail, err)
	}
	return w.writeBytes(buf)
}

func (w *Writer) writeBytes(b []byte) error {
	n, err := w.stream.Write(b)
	w.pos += int64(n)
	if err != nil {
		return wrap("as02.Writer", ReadFail, err)
	}
	return nil
}

// WriteFrame implements write_frame: legal in Ready or Running. bytes is
// written verbatim (the caller is responsible for the preamble-TL/frame-TL
// framing described by the clip buffer format).
func (w *Writer) WriteFrame(bytes []byte) error {
	if w.state != stateReady && w.state != stateRunning {
		return wrap("as02.Writer.WriteFrame", Init, nil)
	}
	w.entries = append(w.entries, mxf.IndexEntry{StreamOffset: w.streamOffset})
	if err := w.writeBytes(bytes); err != nil {
		w.reset()
		return err
	}
	w.streamOffset += uint64(len(bytes))
	w.frameCount++
	w.state = stateRunning
	return nil
}

// FinalizeClip seeks back to the clip's reserved length field and
// back-patches it with the true value length, then restores the cursor to
// the write position.
func (w *Writer) FinalizeClip() error {
	if w.state != stateReady && w.state != stateRunning {
		return wrap("as02.Writer.FinalizeClip", Init, nil)
	}
	lenBuf := make([]byte, 9) // marker + 8 length octets
	lw := klv.NewWriter(lenBuf)
	if err := klv.WriteBERLength(lw, w.streamOffset, 8); err != nil {
		return wrap("as02.Writer.FinalizeClip", Fail, err)
	}
	if err := w.patchAt(w.clipStart+16, lenBuf); err != nil {
		w.reset()
		return err
	}
	logger.Debug("as02: clip finalized", "frameCount", w.frameCount, "streamOffset", w.streamOffset)
	return nil
}

// patchAt seeks to abs, writes b, then restores the cursor to the writer's
// tracked end-of-stream position so subsequent sequential writes continue
// correctly.
func (w *Writer) patchAt(abs int64, b []byte) error {
	if _, err := w.stream.Seek(abs, io.SeekStart); err != nil {
		return wrap("as02.Writer", ReadFail, err)
	}
	if _, err := w.stream.Write(b); err != nil {
		return wrap("as02.Writer", ReadFail, err)
	}
	if _, err := w.stream.Seek(w.pos, io.SeekStart); err != nil {
		return wrap("as02.Writer", ReadFail, err)
	}
	return nil
}

// WriteMetadata implements write_metadata: appends a Generic Stream
// Partition carrying payload as a single (optionally encrypted) KLV, and
// registers the StaticTrack/Sequence/DMSegment/TextBasedDMFramework/
// GenericStreamTextBasedSet object chain a reader uses to locate it later by
// description. When mimeType is "image/jp2" or "image/jpx", payload is
// sanity-checked as a JPEG 2000 codestream before wrapping; a malformed
// codestream is logged as a warning, not rejected, since this profile does
// not otherwise validate essence-type conformance. When compress is true,
// payload is zstd-compressed ahead of the (optional) encryption step.
func (w *Writer) WriteMetadata(trackLabel, mimeType, description string, payload []byte, compress bool) error {
	if w.state == stateBegin {
		return wrap("as02.Writer.WriteMetadata", Init, nil)
	}

	if mimeType == "image/jp2" || mimeType == "image/jpx" {
		if _, err := jp2k.ValidateCodestreamHeader(payload); err != nil {
			logger.Warn("as02: jp2k sanity check failed", "description", description, "err", err)
		}
	}

	tagged := payload
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return wrap("as02.Writer.WriteMetadata", Fail, err)
		}
		compressed := enc.EncodeAll(payload, make([]byte, 0, len(payload)))
		enc.Close()
		tagged = append([]byte{tagZstd}, compressed...)
	} else {
		tagged = append([]byte{tagRaw}, payload...)
	}

	streamSID := w.genericStreamID
	w.genericStreamID++
	streamPos := w.pos

	partition := mxf.Partition{
		Kind:               mxf.GenericStreamPartitionKind,
		OperationalPattern: dict.OPAtom,
		ThisPartition:      uint64(streamPos),
		PreviousPartition:  uint64(w.lastPartitionPos),
		BodySID:            streamSID,
	}
	pack, err := mxf.WritePartitionPack(partition)
	if err != nil {
		return wrap("as02.Writer.WriteMetadata", Fail, err)
	}
	if err := w.writeBytes(pack); err != nil {
		w.reset()
		return err
	}
	w.lastPartitionPos = streamPos

	var body []byte
	var key mxf.UL
	if w.info.EncryptedEssence {
		var iv [aescbc.BlockSize]byte
		_, _ = rand.Read(iv[:])
		if err := w.aesEng.SetIV(iv[:]); err != nil {
			return wrap("as02.Writer.WriteMetadata", CryptInit, err)
		}
		body, err = mxf.EncryptFrame(tagged, 0, dict.GenericStreamPayloadElement, w.info, 0, w.aesEng, w.hmacEng)
		if err != nil {
			return wrap("as02.Writer.WriteMetadata", CryptInit, err)
		}
		if w.info.LabelSet == mxf.LabelSetMXFInterop {
			key = dict.CryptEssenceULInterop
		} else {
			key = dict.CryptEssenceULSMPTE
		}
	} else {
		body = tagged
		key = dict.GenericStreamPayloadElement
	}

	klBuf := make([]byte, klv.KLSize(8)+len(body))
	kw := klv.NewWriter(klBuf)
	if err := klv.WriteKL(kw, key, uint64(len(body)), 8); err != nil {
		return wrap("as02.Writer.WriteMetadata", Fail, err)
	}
	if err := kw.WriteBytes(body); err != nil {
		return wrap("as02.Writer.WriteMetadata", Fail, err)
	}
	if err := w.writeBytes(klBuf); err != nil {
		w.reset()
		return err
	}

	w.ripEntries = append(w.ripEntries, mxf.RIPEntry{BodySID: streamSID, Offset: uint64(streamPos)})

	textSet := &GenericStreamTextBasedSet{
		InstanceUID_:     newUUID(),
		MIMEType:         mimeType,
		Description:      description,
		GenericStreamSID: streamSID,
	}
	framework := &TextBasedDMFramework{InstanceUID_: newUUID(), Description: description, TextBasedSetUID: textSet.InstanceUID_}
	segment := &DMSegment{InstanceUID_: newUUID(), FrameworkUID: framework.InstanceUID_}
	sequence := &Sequence{InstanceUID_: newUUID()}
	track := &StaticTrack{InstanceUID_: newUUID(), TrackName: trackLabel, SequenceUID: sequence.InstanceUID_}

	w.store.AddChild(framework, textSet)
	w.store.AddChild(segment, framework)
	w.store.Add(segment)
	w.store.AddChild(track, sequence)
	w.store.Add(track)
	logger.Debug("as02: metadata written", "description", description, "streamSID", streamSID, "compress", compress)
	return nil
}

// FinalizeMXF writes the Index Table Segment, the Footer Partition (with a
// second, complete copy of the header metadata reflecting any objects
// registered by WriteMetadata), the trailing RIP, then resets the Writer to
// Begin and releases the stream.
func (w *Writer) FinalizeMXF() error {
	if w.state != stateReady && w.state != stateRunning {
		return wrap("as02.Writer.FinalizeMXF", Init, nil)
	}

	seg := mxf.IndexTableSegment{
		IndexEditRate:      w.editRate,
		IndexStartPosition: 0,
		IndexDuration:      int64(len(w.entries)),
		EditUnitByteCount:  0,
		IndexSID:           1,
		BodySID:            1,
		Entries:            w.entries,
	}
	if err := w.writeBytes(mxf.WriteIndexTableSegment(seg)); err != nil {
		w.reset()
		return err
	}

	footerPos := w.pos
	footer := mxf.Partition{
		Kind:               mxf.FooterPartitionKind,
		MajorVersion:       1,
		MinorVersion:       3,
		OperationalPattern: dict.OPAtom,
		ThisPartition:      uint64(footerPos),
		PreviousPartition:  uint64(w.lastPartitionPos),
		FooterPartition:    uint64(footerPos),
		BodySID:            0,
		IndexSID:           1,
		EssenceContainers:  []mxf.UL{dict.IMFIABClipWrappedContainer},
	}
	pack, err := mxf.WritePartitionPack(footer)
	if err != nil {
		w.reset()
		return wrap("as02.Writer.FinalizeMXF", Fail, err)
	}
	if err := w.writeBytes(pack); err != nil {
		w.reset()
		return err
	}

	allObjects := make([]mdstore.Object, 0)
	for _, ul := range []mxf.UL{
		dict.IABEssenceDescriptorUL, dict.IABSoundfieldLabelSubDescriptorUL,
		dict.StaticTrackUL, dict.SequenceUL, dict.DMSegmentUL,
		dict.TextBasedDMFrameworkUL, dict.GenericStreamTextBasedSetUL,
	} {
		allObjects = append(allObjects, w.store.GetAllByType(ul)...)
	}
	records, err := encodeHeaderMetadata(allObjects)
	if err != nil {
		w.reset()
		return wrap("as02.Writer.FinalizeMXF", Fail, err)
	}
	if err := w.writeBytes(mxf.WriteHeaderMetadata(records)); err != nil {
		w.reset()
		return err
	}

	w.ripEntries = append([]mxf.RIPEntry{{BodySID: 1, Offset: uint64(w.headerPos)}}, w.ripEntries...)
	w.ripEntries = append(w.ripEntries, mxf.RIPEntry{BodySID: 0, Offset: uint64(footerPos)})
	if err := w.writeBytes(mxf.WriteRIP(w.ripEntries)); err != nil {
		w.reset()
		return err
	}

	if err := w.patchAt(w.headerPos+mxf.FooterFieldOffset, footerFieldBytes(uint64(footerPos))); err != nil {
		w.reset()
		return err
	}

	logger.Debug("as02: mxf finalized", "footerPos", footerPos, "objectCount", len(allObjects))
	w.reset()
	return nil
}

func footerFieldBytes(v uint64) []byte {
	var b [8]byte
	klv.ByteOrder.PutUint64(b[:], v)
	return b[:]
}

// reset releases the stream and collapses the Writer to Begin, per the
// recovery policy: any failure or successful finalize leaves it ready to
// Open again.
func (w *Writer) reset() {
	if w.closer != nil {
		_ = w.closer.Close()
	}
	*w = Writer{}
}
