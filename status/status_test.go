package status

import "testing"

func TestOK(t *testing.T) {
	s := OK()
	if !s.Ok() {
		t.Fatalf("expected ok status")
	}
	if s.Error() != "" {
		t.Fatalf("expected empty error message, got %q", s.Error())
	}
}

func TestErrorf(t *testing.T) {
	s := Errorf(TypeCoercion, "column %s bad value %d", "x", 42)
	if s.Ok() {
		t.Fatalf("expected error status")
	}
	if s.Kind() != TypeCoercion {
		t.Fatalf("expected TypeCoercion, got %v", s.Kind())
	}
	want := "column x bad value 42"
	if s.Message() != want {
		t.Fatalf("got %q want %q", s.Message(), want)
	}
}

func TestWithTracebackOnlyOnce(t *testing.T) {
	s := Errorf(EngineError, "boom")
	s = s.WithTraceback("in statement 1: ")
	s = s.WithTraceback("in include foo: ")

	want := "in statement 1: boom"
	if s.Message() != want {
		t.Fatalf("got %q want %q", s.Message(), want)
	}
	if !s.HasTracebackPrefix() {
		t.Fatalf("expected has_traceback to be set")
	}
}

func TestWithPayloadNoopOnOK(t *testing.T) {
	s := OK().WithPayload("k", "v")
	if _, ok := s.Payload("k"); ok {
		t.Fatalf("expected no payload on ok status")
	}
}
