package popup

// Status is the availability state shown in the status indicator.
type Status int

const (
	StatusUnknown Status = iota
	StatusReady
	StatusUnavailable
	StatusDownloading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusUnavailable:
		return "unavailable"
	case StatusDownloading:
		return "downloading"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Icon returns the indicator glyph for s. Unknown and any future states render
// as pending.
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return "✅"
	case StatusUnavailable:
		return "❌"
	case StatusDownloading:
		return "⬇️"
	case StatusError:
		return "⚠️"
	default:
		return "⏳"
	}
}

// SessionState tracks the session lifecycle:
// absent -> creating -> active -> absent, or absent -> creating -> absent.
type SessionState int

const (
	SessionAbsent SessionState = iota
	SessionCreating
	SessionActive
)

func (s SessionState) String() string {
	switch s {
	case SessionCreating:
		return "creating"
	case SessionActive:
		return "active"
	default:
		return "absent"
	}
}

// Report is a snapshot of what the status indicator and send control show.
type Report struct {
	Status      Status
	Message     string
	SendEnabled bool
	// Err is the taxonomy error behind a non-ready status, nil when ready.
	Err error
}

const (
	msgPending     = "Checking model availability..."
	msgAbsent      = "Model capability not available. Check the backend configuration."
	msgReady       = "Model ready"
	msgDownload    = "Model needs to be downloaded"
	msgUnavailable = "Model not available"
)
