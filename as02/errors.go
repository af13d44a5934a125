// Package as02 implements the AS-02 IAB clip-wrapped write/read path: a
// three-state clip writer (Begin -> Ready -> Running) that reserves a
// back-patched essence KLV and streams per-frame preamble/frame TLV framing,
// and a matching reader built on package mxf's partition/index/EKLV layer.
package as02

import (
	"fmt"

	"github.com/phastphill/asdcplib/mxf"
)

// Kind mirrors mxf.Kind: this package's own lifecycle and framing failures
// are surfaced under the same closed taxonomy, kept as a distinct type
// because as02's Begin/Ready/Running state machine has a failure mode
// (State) that package mxf's read-only Reader never produces.
type Kind int

const (
	Ok Kind = iota
	Init
	State
	Range
	Format
	ReadFail
	SmallBuf
	HmacFail
	CryptInit
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

// Error is this package's exported error type, structurally identical to
// mxf.Error.
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

func wrap(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, mapping a
// wrapped *mxf.Error to the matching as02 Kind so callers get one consistent
// taxonomy regardless of which layer produced the failure.
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return Kind(mxf.KindOf(err))
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
