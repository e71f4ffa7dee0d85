package dispatch

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeAndKindExtraction(t *testing.T) {
	err := newError(KindState, CodeTerminalStatus, "item is POSTED")

	if CodeOf(err) != CodeTerminalStatus {
		t.Fatalf("expected TERMINAL_STATUS, got %q", CodeOf(err))
	}
	if KindOf(err) != KindState {
		t.Fatalf("expected state kind, got %q", KindOf(err))
	}

	wrapped := fmt.Errorf("transition refused: %w", err)
	if CodeOf(wrapped) != CodeTerminalStatus {
		t.Fatalf("expected code through wrapping, got %q", CodeOf(wrapped))
	}

	if CodeOf(errors.New("plain")) != "" || KindOf(errors.New("plain")) != "" {
		t.Fatalf("foreign errors must extract empty code and kind")
	}
}

func TestNoWorkAvailableSentinel(t *testing.T) {
	if CodeOf(ErrNoWorkAvailable) != CodeNoWorkAvailable {
		t.Fatalf("sentinel code mismatch: %q", CodeOf(ErrNoWorkAvailable))
	}
	if KindOf(ErrNoWorkAvailable) != KindAvailability {
		t.Fatalf("sentinel kind mismatch: %q", KindOf(ErrNoWorkAvailable))
	}
}
