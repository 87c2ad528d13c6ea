package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeWorker, "request failed")
	if got := err.Error(); got != "[worker] request failed" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(stderrors.New("connection reset"), CodeRecognizer, "stream died")
	if got := wrapped.Error(); !strings.Contains(got, "caused by: connection reset") {
		t.Errorf("wrapped Error() = %q, missing cause", got)
	}

	withMeta := New(CodeTTS, "synthesis failed").WithMetadata("voice", "aura-2")
	if got := withMeta.Error(); !strings.Contains(got, "voice") {
		t.Errorf("Error() = %q, missing metadata", got)
	}
}

func TestUnwrapSupportsErrorsIs(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := Wrap(cause, CodeUnavailable, "worker down")

	if !stderrors.Is(err, cause) {
		t.Errorf("errors.Is failed to find the cause")
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) || appErr.Code != CodeUnavailable {
		t.Errorf("errors.As failed")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeAudio, "device gone")); got != CodeAudio {
		t.Errorf("CodeOf = %v, want %v", got, CodeAudio)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Errorf("CodeOf(plain) = %v, want unknown", got)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Errorf("CodeOf(nil) = %v, want unknown", got)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []Code{CodeUnavailable, CodeWorkerTimeout, CodeRecognizerClosed}
	for _, code := range retryable {
		if !IsRetryable(New(code, "x")) {
			t.Errorf("IsRetryable(%v) = false, want true", code)
		}
	}

	terminal := []Code{CodeConfigInvalid, CodeUnsupported, CodeInternal, CodeWorker}
	for _, code := range terminal {
		if IsRetryable(New(code, "x")) {
			t.Errorf("IsRetryable(%v) = true, want false", code)
		}
	}

	if IsRetryable(stderrors.New("plain")) {
		t.Errorf("IsRetryable(plain error) = true")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeWorker, "request %s timed out after %d tries", "req-7", 3)
	if got := err.Message; got != "request req-7 timed out after 3 tries" {
		t.Errorf("Message = %q", got)
	}
}
