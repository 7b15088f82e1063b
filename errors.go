package regvm

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
)

// Sentinel errors the converter can return, wrapped with %w so callers
// can errors.Is against them. Mirrors the small, readable encode-time
// error vocabulary used for assembly errors elsewhere in this domain
// (register-file-size and stack-size errors are this module's analogue
// of an assembler's out-of-range immediate).
var (
	// ErrUnhandledOpcode is returned when the lowering dispatch has no
	// family for a source opcode (spec.md 4.E, 7).
	ErrUnhandledOpcode = errors.New("unhandled source opcode")
	// ErrInconsistentJump is returned when a jump's target byte address
	// does not match any source block's address (spec.md 4.D step 3).
	ErrInconsistentJump = errors.New("jump target does not match any block")
	// ErrRegisterFileTooLarge is returned before lowering begins when
	// nlocals+stacksize exceeds MaxRegisterFile (spec.md 6, 7).
	ErrRegisterFileTooLarge = errors.New("register file exceeds 127 slots")
	// ErrStackSizeOverflow is the fatal form of a simulator bound
	// violation (spec.md 3 invariant 2); the load-convert path alone
	// recovers from this condition instead of propagating it.
	ErrStackSizeOverflow = errors.New("stack size overflow")
)

// ConversionError wraps a fatal converter error with the call stack at
// the point of detection, so a caller's top-level handler can log where
// in the converter the inconsistency was found without a debugger.
type ConversionError struct {
	Err         error
	Stack       stack.CallStack
	Diagnostics string
}

func (e *ConversionError) Error() string {
	if e.Diagnostics == "" {
		return fmt.Sprintf("%v\n%+v", e.Err, e.Stack)
	}
	return fmt.Sprintf("%v\n%+v\n%s", e.Err, e.Stack, e.Diagnostics)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// wrapFatal captures the current call stack (skipping this helper's own
// frame) and attaches it to err.
func wrapFatal(err error) *ConversionError {
	return &ConversionError{Err: err, Stack: stack.Trace()[1:].TrimRuntime()}
}

// StackSizeError is returned by the push/pop/peek simulator primitives
// (spec.md 4.E). It always wraps ErrStackSizeOverflow so callers can
// distinguish it with errors.Is, and it alone may be silently recovered
// by the LOAD_* dispatch to signal unreachable-tail code.
type StackSizeError struct {
	Level, Bound int
	Detail       string
}

func (e *StackSizeError) Error() string {
	return fmt.Sprintf("%s: level=%d bound=%d", e.Detail, e.Level, e.Bound)
}

func (e *StackSizeError) Unwrap() error { return ErrStackSizeOverflow }
