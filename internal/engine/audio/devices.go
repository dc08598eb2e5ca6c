package audio

import (
	"context"
	"time"
)

// NoMicrophone stands in where no capture device exists.
type NoMicrophone struct{}

func (NoMicrophone) Supports(string) bool { return true }

func (NoMicrophone) Open(context.Context, string) (Stream, error) {
	return nil, ErrNoDevice
}

// NoOutput stands in where no audio output exists.
type NoOutput struct{}

func (NoOutput) Open(context.Context, string) (Track, error) {
	return nil, ErrUnsupported
}

func (NoOutput) Probe(context.Context, string) (time.Duration, error) {
	return 0, ErrUnsupported
}
