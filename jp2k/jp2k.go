// Package jp2k gives write_metadata's JP2K descriptor path (present in the
// original AS_DCP_JP2K.cpp, dropped from the distilled spec) a home: a
// best-effort sanity check that a byte slice handed to write_metadata as an
// "image/jp2" or "image/jpx" payload is a well-formed JPEG 2000 codestream
// before it is wrapped in a Generic Stream KLV.
package jp2k

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/mrjoshuak/go-jpeg2000"
)

// socMarker is the JPEG 2000 codestream's Start Of Codestream marker
// (ISO/IEC 15444-1 Annex A). A codestream missing it is rejected before any
// decode is attempted.
var socMarker = []byte{0xff, 0x4f}

// ErrNotACodestream is returned when data does not begin with a JPEG 2000
// SOC marker.
var ErrNotACodestream = errors.New("jp2k: missing SOC marker")

// Profile summarizes the codestream header fields write_metadata's caller
// cares about: enough to log or to cross-check against a descriptor, not a
// full decode result.
type Profile struct {
	Width         int
	Height        int
	NumComponents int
}

// ValidateCodestreamHeader checks data for the SOC marker, then decodes it
// in full with go-jpeg2000 and reports the decoded image's profile. data
// must be a raw codestream: JP2 box wrapping is not unwrapped here.
func ValidateCodestreamHeader(data []byte) (Profile, error) {
	if len(data) < 2 || !bytes.Equal(data[:2], socMarker) {
		return Profile{}, ErrNotACodestream
	}

	img, err := jpeg2000.Decode(bytes.NewReader(data))
	if err != nil {
		return Profile{}, fmt.Errorf("jp2k: codestream header invalid: %w", err)
	}

	bounds := img.Bounds()
	return Profile{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		NumComponents: numColorComponents(img),
	}, nil
}

// numColorComponents distinguishes the single-component grayscale layout
// (the common IMF JP2K essence case) from a multi-component RGB(A) image,
// mirroring the concrete-type switch the teacher's own JPEG 2000 pixel
// extraction uses rather than trying to infer component count generically.
func numColorComponents(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return 4
	default:
		return 3
	}
}
