package mxf

import (
	"io"

	"github.com/phastphill/asdcplib/dict"
)

// RandomAccessStream is the File I/O collaborator this package consumes,
// mirroring the teacher's io.ReaderAt-based Open: a stream that supports
// both random reads (for partition/RIP/index bootstrap) and sequential
// Seek+Read (for the frame hot path, so the sequential-read optimization
// in ReadFrame has a real cursor to avoid re-seeking).
type RandomAccessStream interface {
	io.ReaderAt
	io.Reader
	io.Seeker
}

// Reader implements C4 (Partition + Index Loader) and C5 (EKLV Frame
// Reader). It owns its underlying stream exclusively; calls are serial and
// block until I/O completes, per the single-threaded resource model.
type Reader struct {
	stream RandomAccessStream
	closer io.Closer
	size   int64
	curPos int64

	Header  Partition
	Body    *Partition
	Footer  Partition
	RIP     []RIPEntry
	HeaderMetadata []HeaderMetadataRecord

	essenceStart int64
	lastPosition int64
	haveLast     bool
	index        []IndexEntry

	scratch []byte // ciphertext scratch buffer; not used by the current read path
}

// readKLVAt reads one KLV packet (up to a generous cap) starting at abs and
// returns its raw KL+Value bytes plus its total length in the file.
func readKLVAt(f io.ReaderAt, abs int64, maxProbe int) ([]byte, error) {
	probe := make([]byte, maxProbe)
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
	if first < 0x80 {
		berWidth = 0
	} else {
		berWidth = int(first & 0x7f)
	}
	klSize := 16 + 1 + berWidth
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

// headerProbeSize is generous enough to capture the Partition Pack KLV and
// this library's header metadata KLV in a single ReadAt for the common
// case; readKLVAt falls back to a second, exact-sized read otherwise.
const headerProbeSize = 1 << 16

// OpenRead runs C4 steps 1-4: parse the Header Partition (its RIP and
// header metadata graph), then, when the Header's BodySID is 0, the Body
// Partition named by the second of exactly three RIP entries, and records
// essenceStart.
func OpenRead(stream RandomAccessStream, size int64) (*Reader, error) {
	r := &Reader{stream: stream, size: size}

	headerKLV, err := readKLVAt(stream, 0, headerProbeSize)
	if err != nil {
		return nil, wrap("mxf.OpenRead", ReadFail, err)
	}
	header, consumed, err := ReadPartitionPack(headerKLV)
	if err != nil {
		return nil, wrap("mxf.OpenRead", Init, err)
	}
	r.Header = header
	pos := int64(consumed)

	ripEntries, _, err := ReadRIPAtEOF(stream, size)
	if err != nil {
		return nil, wrap("mxf.OpenRead", Init, err)
	}
	r.RIP = ripEntries

	hmKLV, err := readKLVAt(stream, pos, headerProbeSize)
	if err != nil {
		return nil, wrap("mxf.OpenRead", ReadFail, err)
	}
	records, hmConsumed, err := readHeaderMetadata(hmKLV)
	if err != nil {
		return nil, wrap("mxf.OpenRead", Init, err)
	}
	r.HeaderMetadata = records
	pos += int64(hmConsumed)

	// A Header Partition with a nonzero BodySID carries its essence directly
	// (the layout this profile's writer uses: one partition holds both the
	// metadata and the clip-wrapped essence KLV that follows it), so pos
	// already sits at essence_start and there is no separate Body Partition
	// to seek to. Only when the Header declares no essence of its own
	// (BodySID == 0) does a genuine Body Partition exist, named by the
	// second of exactly three RIP entries.
	if r.Header.BodySID == 0 {
		if len(r.RIP) != 3 {
			return nil, wrap("mxf.OpenRead", Init, errRIPNotThreePartitions)
		}
		bodyKLV, err := readKLVAt(stream, int64(r.RIP[1].Offset), headerProbeSize)
		if err != nil {
			return nil, wrap("mxf.OpenRead", ReadFail, err)
		}
		body, bodyConsumed, err := ReadPartitionPack(bodyKLV)
		if err != nil {
			return nil, wrap("mxf.OpenRead", Init, err)
		}
		r.Body = &body
		pos = int64(r.RIP[1].Offset) + int64(bodyConsumed)
	}

	r.essenceStart = pos
	r.lastPosition = pos
	if err := r.seek(pos); err != nil {
		return nil, wrap("mxf.OpenRead", ReadFail, err)
	}
	return r, nil
}

// OpenReadFile wraps OpenRead, taking ownership of closer so Close
// releases the underlying file handle on success or failure alike.
func OpenReadFile(stream RandomAccessStream, closer io.Closer, size int64) (*Reader, error) {
	r, err := OpenRead(stream, size)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	r.closer = closer
	return r, nil
}

// Close releases the underlying file handle, if this Reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// EssenceStart returns the byte offset immediately after the last preamble
// partition, where essence KLVs begin.
func (r *Reader) EssenceStart() int64 { return r.essenceStart }

// LoadIndex runs C4's index-loading algorithm: seek to the Footer, parse
// its Index Table Segments into one dense table, then restore the cursor
// to essenceStart. A partial load on error leaves the Reader in its prior
// state.
func (r *Reader) LoadIndex() error {
	if r.Header.FooterPartition == 0 {
		return wrap("mxf.LoadIndex", Init, errNoFooterOffset)
	}

	footerKLV, err := readKLVAt(r.stream, int64(r.Header.FooterPartition), headerProbeSize)
	if err != nil {
		return wrap("mxf.LoadIndex", ReadFail, err)
	}
	footer, consumed, err := ReadPartitionPack(footerKLV)
	if err != nil {
		return wrap("mxf.LoadIndex", Init, err)
	}

	remaining := r.size - int64(r.Header.FooterPartition) - int64(consumed)
	if remaining < 0 {
		return wrap("mxf.LoadIndex", Format, nil)
	}
	segBuf := make([]byte, remaining)
	if _, err := r.stream.ReadAt(segBuf, int64(r.Header.FooterPartition)+int64(consumed)); err != nil && err != io.EOF {
		return wrap("mxf.LoadIndex", ReadFail, err)
	}

	var entries []IndexEntry
	pos := 0
	for pos < len(segBuf) && looksLikeIndexSegment(segBuf[pos:]) {
		seg, segConsumed, err := ReadIndexTableSegment(segBuf[pos:])
		if err != nil {
			return wrap("mxf.LoadIndex", Init, err)
		}
		if seg.EditUnitByteCount != 0 {
			for i := int64(0); i < seg.IndexDuration; i++ {
				entries = append(entries, IndexEntry{
					StreamOffset: uint64(seg.IndexStartPosition+i) * uint64(seg.EditUnitByteCount),
				})
			}
		} else {
			entries = append(entries, seg.Entries...)
		}
		pos += segConsumed
	}

	// A writer may follow its Index Table Segments with a second, complete
	// copy of the header metadata KLV, reflecting objects (such as
	// write_metadata's Generic Stream track chain) registered after the
	// Header Partition was already flushed. When present, it supersedes the
	// Header's copy, since it was written last with full knowledge.
	if pos < len(segBuf) {
		if records, consumed, err := readHeaderMetadata(segBuf[pos:]); err == nil {
			r.HeaderMetadata = records
			pos += consumed
		}
	}

	r.Footer = footer
	r.index = entries
	if err := r.seek(r.essenceStart); err != nil {
		return wrap("mxf.LoadIndex", ReadFail, err)
	}
	return nil
}

func looksLikeIndexSegment(buf []byte) bool {
	if len(buf) < 16 {
		return false
	}
	var u UL
	copy(u[:], buf[:16])
	return u.Equal(dict.IndexTableSegmentUL)
}

// Lookup resolves a frame number to its IndexEntry.
func (r *Reader) Lookup(frameNumber uint32) (IndexEntry, error) {
	if int(frameNumber) >= len(r.index) {
		return IndexEntry{}, wrap("mxf.Lookup", Range, nil)
	}
	return r.index[frameNumber], nil
}

// FrameCount returns the number of frames the loaded index describes.
func (r *Reader) FrameCount() int { return len(r.index) }

// seek repositions the sequential cursor used by ReadFrame's hot path,
// skipping the physical Seek call when the stream is already positioned
// correctly — the bookkeeping spec.md's sequential-read optimization
// depends on.
func (r *Reader) seek(pos int64) error {
	if pos == r.curPos {
		return nil
	}
	if _, err := r.stream.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	r.curPos = pos
	return nil
}
