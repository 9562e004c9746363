package errorsx

import (
	"errors"
	"testing"
)

func TestParseErrorKindAndUnwrap(t *testing.T) {
	underlying := errors.New("ERROR node at byte 12")
	err := NewParseError("file:///a.go", 12, underlying)

	if err.Kind() != KindParse {
		t.Errorf("Expected Kind to be KindParse, got %v", err.Kind())
	}
	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}
	if err.Error() != `parse error in file:///a.go at byte 12: ERROR node at byte 12` {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCursorErrorKind(t *testing.T) {
	err := NewCursorError("file:///a.go", 3, 7)
	if err.Kind() != KindCursor {
		t.Errorf("Expected Kind to be KindCursor, got %v", err.Kind())
	}
	if err.Error() != "no identifier at file:///a.go:3:7" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestResolutionErrorKind(t *testing.T) {
	err := NewResolutionError("file:///a.go", "counter")
	if err.Kind() != KindResolution {
		t.Errorf("Expected Kind to be KindResolution, got %v", err.Kind())
	}
}

func TestHelperErrorTimeoutMessage(t *testing.T) {
	err := NewHelperError("resolve", true, nil)
	if err.Kind() != KindHelper {
		t.Errorf("Expected Kind to be KindHelper, got %v", err.Kind())
	}
	if err.Error() != "semantic helper resolve timed out" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestStageErrorKind(t *testing.T) {
	err := NewStageError("classify", "boom")
	if err.Kind() != KindStage {
		t.Errorf("Expected Kind to be KindStage, got %v", err.Kind())
	}
}

func TestTransportErrorKindAndUnwrap(t *testing.T) {
	underlying := errors.New("broken pipe")
	err := NewTransportError(underlying)
	if err.Kind() != KindTransport {
		t.Errorf("Expected Kind to be KindTransport, got %v", err.Kind())
	}
	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}
}

func TestRequestErrorKind(t *testing.T) {
	err := NewRequestError("textDocument/hover", "unknown document")
	if err.Kind() != KindRequest {
		t.Errorf("Expected Kind to be KindRequest, got %v", err.Kind())
	}
}

func TestLSPCodeByKind(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{NewRequestError("m", "bad"), -32602},
		{NewCursorError("u", 0, 0), -32001},
		{NewResolutionError("u", "x"), -32001},
		{NewParseError("u", 0, nil), -32001},
		{NewHelperError("op", false, nil), -32002},
		{NewStageError("classify", "boom"), -32603},
		{errors.New("plain error, not in the taxonomy"), -32603},
	}
	for _, c := range cases {
		if got := LSPCode(c.err); got != c.code {
			t.Errorf("LSPCode(%v) = %d, want %d", c.err, got, c.code)
		}
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")
	err3 := errors.New("error 3")

	multiErr := NewMultiError([]error{err1, err2, err3})
	if len(multiErr.Errors) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(multiErr.Errors))
	}
	if multiErr.Error() != "3 errors: [error 1 error 2 error 3]" {
		t.Errorf("unexpected message: %q", multiErr.Error())
	}

	singleErr := NewMultiError([]error{err1})
	if singleErr.Error() != "error 1" {
		t.Errorf("Expected 'error 1', got %q", singleErr.Error())
	}

	emptyErr := NewMultiError([]error{})
	if emptyErr.Error() != "no errors" {
		t.Errorf("Expected 'no errors', got %q", emptyErr.Error())
	}

	nilFiltered := NewMultiError([]error{err1, nil, err2, nil})
	if len(nilFiltered.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nil, got %d", len(nilFiltered.Errors))
	}

	unwrapped := multiErr.Unwrap()
	if len(unwrapped) != 3 {
		t.Errorf("Expected 3 unwrapped errors, got %d", len(unwrapped))
	}
}
