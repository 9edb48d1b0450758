package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRead    Phase = "read"    // linear tree construction
	PhaseResolve Phase = "resolve" // cross-reference pass
	PhaseDetect  Phase = "detect"  // container format sniffing
	PhaseLoad    Phase = "load"    // obtaining input bytes
	PhaseVerify  Phase = "verify"  // runtime cross-check
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfData       Kind = "out_of_data"
	KindOverflow        Kind = "overflow"
	KindBrokenReference Kind = "broken_reference"
	KindInvalidData     Kind = "invalid_data"
	KindUnsupported     Kind = "unsupported"
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
)

// NoOffset marks an Error that is not tied to a byte position.
const NoOffset = -1

// Error is the structured error type used by every decoder package
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
	Offset int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset 0x%x)", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// PrependPath adds an outer path segment. Decoders call it while a failure
// unwinds through enclosing components.
func (e *Error) PrependPath(segment string) {
	if segment == "" {
		return
	}
	e.Path = append([]string{segment}, e.Path...)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: NoOffset,
		},
	}
}

// Path sets the component path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Offset sets the byte offset of the failure
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// OutOfData creates an error for a read that needs more bytes than remain.
func OutOfData(offset, want, have int) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindOutOfData,
		Offset: offset,
		Detail: fmt.Sprintf("need %d byte(s), %d remaining", want, have),
		Value:  want,
	}
}

// Overflow creates an error for a variable-length integer wider than its target.
func Overflow(offset int, value any, targetType string) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindOverflow,
		Offset: offset,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// BrokenReference creates an error for an index that points outside its table.
func BrokenReference(table string, index, length int) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindBrokenReference,
		Offset: NoOffset,
		Detail: fmt.Sprintf("%s index %d out of bounds (length %d)", table, index, length),
		Value:  index,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, offset int, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Offset: offset,
		Detail: detail,
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, offset int, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Offset: offset,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Offset: NoOffset,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Offset: NoOffset,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates an input loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates an error for a decode session that did not complete.
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindOf(cause),
		Offset: OffsetOf(cause),
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInvalidData for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInvalidData
}

// PhaseOf returns the Phase of the first *Error in err's chain.
func PhaseOf(err error) Phase {
	if e, ok := As(err); ok {
		return e.Phase
	}
	return ""
}

// OffsetOf returns the byte offset recorded in err's chain, or NoOffset.
func OffsetOf(err error) int {
	for err != nil {
		e, ok := As(err)
		if !ok {
			return NoOffset
		}
		if e.Offset >= 0 {
			return e.Offset
		}
		err = e.Cause
	}
	return NoOffset
}
