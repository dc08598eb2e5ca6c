package audio

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a media failure.
type Kind string

const (
	KindNetwork          Kind = "network"
	KindFormat           Kind = "format"
	KindAborted          Kind = "aborted"
	KindAutoplayBlocked  Kind = "autoplay_blocked"
	KindPermissionDenied Kind = "permission_denied"
	KindNoDevice         Kind = "no_device"
	KindUnknown          Kind = "unknown"
)

// Sentinels returned (wrapped) by Backend and Microphone implementations.
var (
	ErrNetwork          = errors.New("media network failure")
	ErrDecode           = errors.New("media decode failure")
	ErrUnsupported      = errors.New("media format not supported")
	ErrAborted          = errors.New("media load aborted")
	ErrNotAllowed       = errors.New("playback not allowed without user interaction")
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = errors.New("no microphone available")

	ErrNotRecording = errors.New("not recording")
	ErrNoEncoding   = errors.New("no supported audio encoding")
)

// MediaError is a capture or playback failure with a cause-specific message.
type MediaError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *MediaError) Error() string {
	switch e.Kind {
	case KindNetwork:
		return "could not load the voice message: network error"
	case KindFormat:
		return "could not play the voice message: the audio format is not supported or the file is damaged"
	case KindAborted:
		return "voice message playback was aborted"
	case KindAutoplayBlocked:
		return "playback was blocked until you interact with the app; press play again"
	case KindPermissionDenied:
		return "microphone access was denied"
	case KindNoDevice:
		return "no microphone was found"
	default:
		if e.Err == nil {
			return fmt.Sprintf("audio %s failed", e.Op)
		}
		return fmt.Sprintf("audio %s failed: %v", e.Op, e.Err)
	}
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// Classify wraps err into a MediaError for op.
func Classify(op string, err error) *MediaError {
	if err == nil {
		return nil
	}
	var me *MediaError
	if errors.As(err, &me) {
		return me
	}
	kind := KindUnknown
	switch {
	case errors.Is(err, ErrNetwork):
		kind = KindNetwork
	case errors.Is(err, ErrDecode), errors.Is(err, ErrUnsupported):
		kind = KindFormat
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		kind = KindAborted
	case errors.Is(err, ErrNotAllowed):
		kind = KindAutoplayBlocked
	case errors.Is(err, ErrPermissionDenied):
		kind = KindPermissionDenied
	case errors.Is(err, ErrNoDevice):
		kind = KindNoDevice
	}
	return &MediaError{Kind: kind, Op: op, Err: err}
}
