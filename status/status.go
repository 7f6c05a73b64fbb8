// Package status implements the unified result type used throughout the
// engine: a Status carries either success or an error kind, a
// human-readable message and an optional payload map.
package status

import "fmt"

// Kind classifies the error carried by a non-ok Status. The zero value,
// Ok, never appears on an error Status.
type Kind int

const (
	Ok Kind = iota
	ParseError
	MacroError
	SchemaMismatch
	TypeCoercion
	UnknownFunction
	UnknownModule
	UnknownIndex
	DuplicateDefinition
	BadArgument
	EngineError
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case ParseError:
		return "parse error"
	case MacroError:
		return "macro error"
	case SchemaMismatch:
		return "schema mismatch"
	case TypeCoercion:
		return "type coercion"
	case UnknownFunction:
		return "unknown function"
	case UnknownModule:
		return "unknown module"
	case UnknownIndex:
		return "unknown index"
	case DuplicateDefinition:
		return "duplicate definition"
	case BadArgument:
		return "bad argument"
	case EngineError:
		return "engine error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// HasTraceback is the reserved payload key indicating the message has
// already been prefixed with a source-location traceback.
const HasTraceback = "has_traceback"

// Status is the core result type: either ok, or an error with a kind, a
// message and an optional payload map.
type Status struct {
	kind    Kind
	message string
	payload map[string]string
}

// OK returns a successful status.
func OK() Status { return Status{kind: Ok} }

// Errorf builds an error Status of the given kind.
func Errorf(kind Kind, format string, args ...interface{}) Status {
	return Status{kind: kind, message: fmt.Sprintf(format, args...)}
}

func (s Status) Ok() bool       { return s.kind == Ok }
func (s Status) Kind() Kind     { return s.kind }
func (s Status) Message() string {
	return s.message
}

// Error implements the error interface so a Status can be returned or
// wrapped as a plain Go error at API boundaries.
func (s Status) Error() string {
	if s.Ok() {
		return ""
	}
	return s.message
}

// Payload returns the value for key, and whether it was set.
func (s Status) Payload(key string) (string, bool) {
	if s.payload == nil {
		return "", false
	}
	v, ok := s.payload[key]
	return v, ok
}

// WithPayload returns a copy of s with key=value merged into its payload
// map. Payload is a no-op on an ok Status (there is nothing to annotate).
func (s Status) WithPayload(key, value string) Status {
	if s.Ok() {
		return s
	}
	next := s
	next.payload = make(map[string]string, len(s.payload)+1)
	for k, v := range s.payload {
		next.payload[k] = v
	}
	next.payload[key] = value
	return next
}

// HasTracebackPrefix reports whether the message has already had a
// traceback prepended, per the has_traceback payload convention.
func (s Status) HasTracebackPrefix() bool {
	v, ok := s.Payload(HasTraceback)
	return ok && v == "1"
}

// WithTraceback prepends prefix to the message and marks has_traceback,
// unless the message is already marked (avoids double-prepending across
// Include frame boundaries).
func (s Status) WithTraceback(prefix string) Status {
	if s.Ok() || s.HasTracebackPrefix() {
		return s
	}
	next := s
	next.message = prefix + s.message
	return next.WithPayload(HasTraceback, "1")
}
