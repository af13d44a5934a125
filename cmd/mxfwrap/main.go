// mxfwrap wraps a directory of raw IAB frame pairs into a single AS-02
// clip-wrapped MXF file.
//
// Usage:
//
//	mxfwrap -o outfile.mxf indir
//
// indir must contain, for each frame N (zero-padded, ascending), a
// preamble file and a frame file:
//
//	0000.preamble  0000.frame
//	0001.preamble  0001.frame
//	...
//
// Each pair is framed as preamble-TL + preamble + frame-TL + frame and
// written verbatim via write_frame; mxfwrap owns none of the IAB codestream
// semantics, only the clip-wrapping.
//
// Options:
//
//	-o <path>       output file (required)
//	-mca <name>     MCA soundfield label tag name (default "IAB")
//	-edit-rate <n/d>    edit rate as a fraction (default 24/1)
//	-sample-rate <n/d>  sample rate as a fraction (default 48000/1)
//	-encrypt        encrypt write_metadata payloads; the clip essence itself
//	                is never encrypted
//	-h, --help      print this message
//	--version       print version information
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/phastphill/asdcplib/as02"
	"github.com/phastphill/asdcplib/mxf"
)

const version = "1.0.0"

func main() {
	output := flag.String("o", "", "output file")
	mcaTag := flag.String("mca", "IAB", "MCA soundfield label tag name")
	editRateFlag := flag.String("edit-rate", "24/1", "edit rate, as numerator/denominator")
	sampleRateFlag := flag.String("sample-rate", "48000/1", "sample rate, as numerator/denominator")
	encrypt := flag.Bool("encrypt", false, "encrypt write_metadata payloads")
	showVersion := flag.Bool("version", false, "show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mxfwrap -o outfile.mxf indir\n\n")
		fmt.Fprintf(os.Stderr, "Wrap a directory of NNNN.preamble/NNNN.frame pairs into a clip-wrapped MXF file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("mxfwrap version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if *output == "" || len(args) != 1 {
		flag.Usage()
		os.Exit(2)
	}

	editRate, err := parseRational(*editRateFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mxfwrap: -edit-rate: %v\n", err)
		os.Exit(2)
	}
	sampleRate, err := parseRational(*sampleRateFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mxfwrap: -sample-rate: %v\n", err)
		os.Exit(2)
	}

	if err := wrapDir(args[0], *output, *mcaTag, editRate, sampleRate, *encrypt); err != nil {
		fmt.Fprintf(os.Stderr, "mxfwrap: %v\n", err)
		os.Exit(1)
	}
}

func parseRational(s string) (mxf.Rational, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return mxf.Rational{}, fmt.Errorf("expected N/D, got %q", s)
	}
	num, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return mxf.Rational{}, err
	}
	den, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return mxf.Rational{}, err
	}
	return mxf.Rational{Numerator: int32(num), Denominator: int32(den)}, nil
}

// framePair names one frame's preamble and frame file, keyed by the
// zero-padded numeric prefix shared by both.
type framePair struct {
	index    int
	preamble string
	frame    string
}

func discoverFrames(dir string) ([]framePair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	byIndex := map[int]*framePair{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var stem, kind string
		switch {
		case strings.HasSuffix(name, ".preamble"):
			stem, kind = strings.TrimSuffix(name, ".preamble"), "preamble"
		case strings.HasSuffix(name, ".frame"):
			stem, kind = strings.TrimSuffix(name, ".frame"), "frame"
		default:
			continue
		}
		n, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		p, ok := byIndex[n]
		if !ok {
			p = &framePair{index: n}
			byIndex[n] = p
		}
		full := filepath.Join(dir, name)
		if kind == "preamble" {
			p.preamble = full
		} else {
			p.frame = full
		}
	}

	pairs := make([]framePair, 0, len(byIndex))
	for _, p := range byIndex {
		if p.preamble == "" || p.frame == "" {
			return nil, fmt.Errorf("frame %04d: missing %s", p.index, map[bool]string{true: "preamble", false: "frame"}[p.preamble == ""])
		}
		pairs = append(pairs, *p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].index < pairs[j].index })
	return pairs, nil
}

func frameTLV(payload []byte) []byte {
	buf := make([]byte, 5+len(payload))
	buf[0] = 0
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf
}

func wrapDir(indir, outpath, mcaTag string, editRate, sampleRate mxf.Rational, encrypt bool) error {
	pairs, err := discoverFrames(indir)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("%s: no NNNN.preamble/NNNN.frame pairs found", indir)
	}

	f, err := os.Create(outpath)
	if err != nil {
		return err
	}

	w := as02.New()
	info := mxf.WriterInfo{LabelSet: mxf.LabelSetMXFSMPTE, EncryptedEssence: encrypt}
	var contentKey [16]byte
	sub := &as02.IABSoundfieldLabelSubDescriptor{MCATagName: mcaTag}

	if err := w.Open(f, f, info, contentKey, sub, nil, editRate, sampleRate); err != nil {
		f.Close()
		return err
	}

	for _, p := range pairs {
		preamble, err := os.ReadFile(p.preamble)
		if err != nil {
			return err
		}
		frame, err := os.ReadFile(p.frame)
		if err != nil {
			return err
		}
		buf := append(frameTLV(preamble), frameTLV(frame)...)
		if err := w.WriteFrame(buf); err != nil {
			return err
		}
	}

	if err := w.FinalizeClip(); err != nil {
		return err
	}
	if err := w.FinalizeMXF(); err != nil {
		return err
	}
	fmt.Printf("%s: wrote %d frames\n", outpath, len(pairs))
	return nil
}
