// Package mxf implements the MXF framed-essence read path: partition and
// index loading, and per-frame EKLV extraction (plaintext or SMPTE 429.6
// encrypted). It is the C4/C5 layer consumed by package as02's IAB clip
// writer/reader.
package mxf

import "fmt"

// Kind is a closed taxonomy of result kinds surfaced across the package
// boundary in place of ad-hoc sentinel errors, matching the error
// vocabulary this format's read/write state machines are specified against.
type Kind int

const (
	// Ok is not itself returned as an error; it exists so Kind's zero value
	// is meaningful when embedded in larger result types.
	Ok Kind = iota
	// Init means an operation was called in the wrong lifecycle state, or on
	// an uninitialized engine.
	Init
	// State means an open-like call ran on an already-open instance.
	State
	// Range means a frame number fell outside the index's domain.
	Range
	// Format means a parsed field didn't match its expected UL, length
	// width, or context.
	Format
	// ReadFail means a short read or other underlying I/O error occurred.
	ReadFail
	// SmallBuf means the caller-provided buffer can't hold the output.
	SmallBuf
	// HmacFail means an integrity pack did not match.
	HmacFail
	// CryptInit means key-schedule setup failed.
	CryptInit
	// Fail is a generic unexpected condition, e.g. a BER width overflow.
	Fail
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case Init:
		return "Init"
	case State:
		return "State"
	case Range:
		return "Range"
	case Format:
		return "Format"
	case ReadFail:
		return "ReadFail"
	case SmallBuf:
		return "SmallBuf"
	case HmacFail:
		return "HmacFail"
	case CryptInit:
		return "CryptInit"
	case Fail:
		return "Fail"
	default:
		return "Unknown"
	}
}

// Error is the error type returned across this package's exported API. Op
// names the failing operation ("mxf.OpenRead", "mxf.ReadFrame", ...); Err,
// when non-nil, wraps the underlying cause for errors.Is/errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// wrap constructs an *Error, the package's standard way of surfacing a
// Kind from a lower-level cause.
func wrap(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise returns Fail.
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return Fail
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
