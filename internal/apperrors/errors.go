// Package apperrors defines the error taxonomy shared by every pipeline stage.
//
// Collaborator failures are classified into a Kind once, at the point where the
// vendor error is observed, so the orchestrating code can decide between retry,
// degradation and abort without inspecting vendor-specific error types.
package apperrors

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/meeting-summarizer/internal/resilience"
)

// Kind classifies an error for retry and propagation decisions
type Kind int

const (
	KindUnknown           Kind = iota
	KindInvalidAudio           // source cannot be decoded or probed, fatal
	KindTransient              // rate limit, timeout, network; retried then degraded
	KindAuthentication         // credentials rejected, fatal, never retried
	KindInvalidInput           // collaborator rejected this particular request
	KindMalformedResponse      // summarization payload not parseable at all
	KindCancelled              // caller cancelled the run
)

// String returns the kind name used in logs and metric labels
func (k Kind) String() string {
	switch k {
	case KindInvalidAudio:
		return "invalid_audio"
	case KindTransient:
		return "transient"
	case KindAuthentication:
		return "authentication"
	case KindInvalidInput:
		return "invalid_input"
	case KindMalformedResponse:
		return "malformed_response"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Stage names the pipeline stage an error originated from
type Stage string

const (
	StageConfig     Stage = "config"
	StageLoad       Stage = "load"
	StageChunk      Stage = "chunk"
	StageTranscribe Stage = "transcribe"
	StageBuild      Stage = "build"
	StageSummarize  Stage = "summarize"
	StageAssemble   Stage = "assemble"
	StageOutput     Stage = "output"
)

// Error is the classified error type returned across package boundaries
type Error struct {
	Stage   Stage
	Kind    Kind
	Message string
	Cause   error
}

// Error renders a single human-readable line naming the stage and the reason
func (e *Error) Error() string {
	reason := e.Message
	if reason == "" && e.Cause != nil {
		reason = e.Cause.Error()
	} else if e.Cause != nil {
		reason = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Stage == "" {
		return reason
	}
	return fmt.Sprintf("%s failed: %s", e.Stage, reason)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error { return e.Cause }

// New creates a classified error
func New(stage Stage, kind Kind, message string) *Error {
	return &Error{Stage: stage, Kind: kind, Message: message}
}

// Wrap classifies cause under stage and kind. A nil cause returns nil.
func Wrap(stage Stage, kind Kind, cause error, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Stage: stage, Kind: kind, Message: message, Cause: cause}
}

// InvalidAudio creates an InvalidAudioError for the given stage
func InvalidAudio(stage Stage, format string, args ...any) *Error {
	return New(stage, KindInvalidAudio, fmt.Sprintf(format, args...))
}

// Transient marks cause as a retryable service failure
func Transient(cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: KindTransient, Cause: cause}
}

// Authentication marks cause as a credential failure
func Authentication(cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: KindAuthentication, Cause: cause}
}

// InvalidInput marks cause as a rejected request
func InvalidInput(cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: KindInvalidInput, Cause: cause}
}

// Malformed creates a MalformedResponseError
func Malformed(cause error) error {
	return &Error{Stage: StageAssemble, Kind: KindMalformedResponse, Message: "response is not valid JSON", Cause: cause}
}

// KindOf returns the outermost classified kind of err. Context errors are
// classified as cancelled or transient even when they were never wrapped.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind != KindUnknown {
			return e.Kind
		}
		return KindOf(e.Cause)
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StageOf returns the stage recorded on err, or "" if none
func StageOf(err error) Stage {
	var e *Error
	for errors.As(err, &e) {
		if e.Stage != "" {
			return e.Stage
		}
		err = e.Cause
	}
	return ""
}

// WithStage attaches stage to err, keeping its classification. Errors that
// already carry a stage are returned unchanged.
func WithStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	if StageOf(err) != "" {
		return err
	}
	kind := KindOf(err)
	if e, ok := err.(*Error); ok {
		return &Error{Stage: stage, Kind: kind, Message: e.Message, Cause: e.Cause}
	}
	return &Error{Stage: stage, Kind: kind, Cause: err}
}

// Retryable reports whether err should be retried by a stage retry loop.
// Unclassified errors are retried only when they look like network failures.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient:
		return true
	case KindUnknown:
		return resilience.IsRetryableNetworkError(err)
	}
	return false
}

// Fatal reports whether err must stop the run instead of degrading
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindInvalidAudio, KindAuthentication, KindCancelled:
		return true
	}
	return false
}
