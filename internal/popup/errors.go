package popup

import (
	"errors"
	"fmt"
)

var (
	ErrCapabilityAbsent      = errors.New("model capability not registered")
	ErrCapabilityUnavailable = errors.New("model capability unavailable")
	ErrDownloadRequired      = errors.New("model download required")
	ErrEmptyPrompt           = errors.New("empty prompt")
	ErrBusy                  = errors.New("a prompt is already in flight")
	ErrSendDisabled          = errors.New("sending is disabled")
	ErrClosed                = errors.New("popup closed")
)

// ProbeError is a fault raised by the host while reporting availability.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string { return fmt.Sprintf("probe: %v", e.Err) }
func (e *ProbeError) Unwrap() error { return e.Err }

// SessionInitError is a fault raised by the host while creating a session.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string { return fmt.Sprintf("session init: %v", e.Err) }
func (e *SessionInitError) Unwrap() error { return e.Err }

// SendError is a fault raised by the host during an exchange.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send: %v", e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

// DisplayText renders err for the output area. Host text is interpolated
// verbatim.
func DisplayText(err error) string {
	if err == nil {
		return ""
	}
	var (
		initErr *SessionInitError
		sendErr *SendError
		probe   *ProbeError
	)
	switch {
	case errors.Is(err, ErrEmptyPrompt):
		return "Please enter a prompt"
	case errors.Is(err, ErrBusy):
		return "Please wait for the current response"
	case errors.Is(err, ErrSendDisabled):
		return "Sending is disabled until the model is ready"
	case errors.Is(err, ErrClosed):
		return "Session closed"
	case errors.As(err, &initErr):
		return "Session error: " + initErr.Err.Error()
	case errors.As(err, &sendErr):
		return "Error: " + sendErr.Err.Error()
	case errors.As(err, &probe):
		return "Error: " + probe.Err.Error()
	default:
		return "Error: " + err.Error()
	}
}
