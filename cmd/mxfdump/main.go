// mxfdump validates an AS-02 IAB clip-wrapped MXF file and prints a summary
// of its index (frame count) and header metadata.
//
// Usage:
//
//	mxfdump [-q] <filename> [<filename> ...]
//
// Options:
//
//	-q           only print errors; exit code alone indicates pass/fail
//
// Exit codes:
//
//	0: all files valid
//	1: one or more files invalid
//	2: usage error
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/phastphill/asdcplib/as02"
	"github.com/phastphill/asdcplib/mxf"
)

const version = "1.0.0"

func main() {
	quiet := flag.Bool("q", false, "only print errors")
	showVersion := flag.Bool("version", false, "show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mxfdump [-q] <filename> [<filename> ...]\n\n")
		fmt.Fprintf(os.Stderr, "Validate and summarize an AS-02 IAB clip-wrapped MXF file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("mxfdump version %s\n", version)
		os.Exit(0)
	}

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	exitCode := 0
	for _, path := range files {
		if err := dumpFile(path, *quiet); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func dumpFile(path string, quiet bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	r, err := as02.OpenRead(f, f, stat.Size(), mxf.WriterInfo{}, [16]byte{})
	if err != nil {
		return err
	}
	defer r.Close()

	if quiet {
		return nil
	}

	fmt.Printf("%s\n", path)
	fmt.Printf("  frames: %d\n", r.FrameCount())

	if d, ok := r.Descriptor(); ok {
		fmt.Printf("  essence UL: % x\n", d.EssenceUL)
		fmt.Printf("  edit rate: %d/%d\n", d.EditRate.Numerator, d.EditRate.Denominator)
		fmt.Printf("  sample rate: %d/%d\n", d.SampleRate.Numerator, d.SampleRate.Denominator)
	}

	for _, t := range r.Tracks() {
		fmt.Printf("  track: %q\n", t.TrackName)
	}

	for _, s := range r.MetadataStreams() {
		fmt.Printf("  metadata stream: %q (%s, BodySID=%d)\n", s.Description, s.MIMEType, s.GenericStreamSID)
	}

	return nil
}
