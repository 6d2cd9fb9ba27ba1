package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateExtractingAudio, true},
		{StateIdle, StateDeriving, true},
		{StateIdle, StateTranscribing, false},
		{StateExtractingAudio, StateLoadingModel, true},
		{StateLoadingModel, StateTranscribing, true},
		{StateTranscribing, StateComplete, true},
		{StateDeriving, StateEncoding, true},
		{StateEncoding, StateComplete, true},
		{StateEncoding, StateTranscribing, false},
		{StateIdle, StateFailed, true},
		{StateTranscribing, StateFailed, true},
		{StateComplete, StateFailed, false},
		{StateFailed, StateIdle, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMachineRejectsIllegalTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(StateComplete); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s", m.State())
	}
	m.Fail()
	m.Fail()
	if m.State() != StateFailed {
		t.Errorf("state = %s", m.State())
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("job: %w", NewError(KindExtractionFailed, errors.New("ffmpeg exited 1")))
	if !errors.Is(err, ErrExtractionFailed) {
		t.Error("wrapped error lost its kind")
	}
	if errors.Is(err, ErrNoSpeech) {
		t.Error("kinds must be distinguishable")
	}
	if KindOf(err) != KindExtractionFailed {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error has a kind")
	}

	if NewError(KindEncodingFailed, context.Canceled).Kind != KindCancelled {
		t.Error("cancellation not detected")
	}
	inner := &Error{Kind: KindModelLoadFailed}
	if NewError(KindTranscriptionFailed, inner) != inner {
		t.Error("existing kind should be kept")
	}

	var pe *Error
	if !errors.As(err, &pe) || pe.UserMessage() == "" {
		t.Error("user message missing")
	}
}

func TestExportSettingsValidate(t *testing.T) {
	if err := (ExportSettings{}).WithDefaults().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	bad := []ExportSettings{
		{Format: "avi", Quality: QualityHigh, Resolution: ResolutionOriginal},
		{Format: FormatMP4, Quality: "ultra", Resolution: ResolutionOriginal},
		{Format: FormatMP4, Quality: QualityHigh, Resolution: "4k"},
	}
	for _, s := range bad {
		if s.Validate() == nil {
			t.Errorf("%+v should be invalid", s)
		}
	}
}
