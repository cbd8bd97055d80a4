package linkerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestFatalWrapsAndClassifies(t *testing.T) {
	err := Fatal(KindWrite, "write", io.ErrClosedPipe)
	wrapped := fmt.Errorf("send move: %w", err)

	if !IsFatal(wrapped) {
		t.Fatalf("expected wrapped error to be fatal")
	}
	if KindOf(wrapped) != KindWrite {
		t.Fatalf("unexpected kind: %q", KindOf(wrapped))
	}
	if !errors.Is(wrapped, io.ErrClosedPipe) {
		t.Fatalf("expected cause to be reachable via errors.Is")
	}
	if got := err.Error(); got != "write: write: io: read/write on closed pipe" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestPlainErrorIsNotFatal(t *testing.T) {
	if IsFatal(errors.New("illegal move")) {
		t.Fatalf("plain error must not be fatal")
	}
	if KindOf(nil) != "" {
		t.Fatalf("nil error must have no kind")
	}
}
