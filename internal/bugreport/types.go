// Package bugreport defines the request, listener, and error-code contract
// shared between the bugrd service and its callers. The types here cross the
// trust boundary: a caller builds a Request, supplies a Listener, and
// receives progress and status callbacks until exactly one terminal event
// (error or finished) arrives.
package bugreport

import (
	"io"
	"strings"

	"github.com/DigiGoon/bugrd/internal/errors"
)

// Mode describes what kind of capture to take.
type Mode int

const (
	// ModeFull is a complete capture including all sections.
	ModeFull Mode = iota
	// ModeInteractive is a capture started by the user, with progress shown.
	ModeInteractive
	// ModeRemote is a capture requested by a remote device-management caller.
	ModeRemote
	// ModeWear is a capture tailored for wearable devices.
	ModeWear
	// ModeTelephony is a lightweight capture of telephony state only.
	ModeTelephony
	// ModeWifi is a lightweight capture of connectivity state only.
	ModeWifi
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeInteractive:
		return "interactive"
	case ModeRemote:
		return "remote"
	case ModeWear:
		return "wear"
	case ModeTelephony:
		return "telephony"
	case ModeWifi:
		return "wifi"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to a Mode. Returns ModeFull and false if the
// string is not a recognized mode name.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "full":
		return ModeFull, true
	case "interactive":
		return ModeInteractive, true
	case "remote":
		return ModeRemote, true
	case "wear":
		return ModeWear, true
	case "telephony":
		return ModeTelephony, true
	case "wifi":
		return ModeWifi, true
	default:
		return ModeFull, false
	}
}

// ValidModes returns the list of valid mode names.
func ValidModes() []string {
	return []string{"full", "interactive", "remote", "wear", "telephony", "wifi"}
}

// ErrorCode identifies why a capture session failed. It is the payload of
// the listener's OnError callback.
type ErrorCode int

const (
	// CodeInvalidInput means the capture request was malformed.
	CodeInvalidInput ErrorCode = iota
	// CodeRuntime means the collector reported a failure after start.
	CodeRuntime
	// CodeUserDeniedConsent means the user declined to share the capture.
	CodeUserDeniedConsent
	// CodeUserConsentTimedOut means no consent decision arrived before the
	// deadline. The artifact stays in the spool for manual retrieval.
	CodeUserConsentTimedOut
)

// String returns a stable identifier for the error code.
func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidInput:
		return "INVALID_INPUT"
	case CodeRuntime:
		return "RUNTIME"
	case CodeUserDeniedConsent:
		return "USER_DENIED_CONSENT"
	case CodeUserConsentTimedOut:
		return "USER_CONSENT_TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Err maps the code to the corresponding sentinel error.
func (c ErrorCode) Err() error {
	switch c {
	case CodeInvalidInput:
		return errors.ErrInvalidInput
	case CodeRuntime:
		return errors.ErrCollectorFailed
	case CodeUserDeniedConsent:
		return errors.ErrUserDeniedConsent
	case CodeUserConsentTimedOut:
		return errors.ErrUserConsentTimedOut
	default:
		return errors.New("unknown capture error")
	}
}

// Progress bounds for listener callbacks. Values outside this range are
// clamped before delivery.
const (
	ProgressMin = 0.0
	ProgressMax = 100.0
)

// ClampProgress forces a progress value into [ProgressMin, ProgressMax].
func ClampProgress(p float64) float64 {
	if p < ProgressMin {
		return ProgressMin
	}
	if p > ProgressMax {
		return ProgressMax
	}
	return p
}

// Request describes a single capture: what to collect and where the caller
// wants the artifacts written. A Request is immutable once submitted.
//
// Sinks are borrowed: they are opened by the caller and remain owned by the
// caller. The service writes to them only after the user approves sharing,
// and never closes them.
type Request struct {
	// Mode selects the kind of capture.
	Mode Mode

	// ReportSink receives the report artifact on consent approval. Required.
	ReportSink io.Writer

	// ScreenshotSink receives the screenshot artifact, if one is taken.
	// Optional; nil means no screenshot is delivered.
	ScreenshotSink io.Writer

	// Requester is the opaque principal on whose behalf the capture runs.
	// It is shown in the consent prompt and recorded in logs.
	Requester string
}

// Validate checks the request for admission. A nil report sink or an empty
// requester is rejected with a validation error matching ErrInvalidInput.
func (r *Request) Validate() error {
	if r.ReportSink == nil {
		return errors.NewValidationError("report sink is required").WithField("reportSink")
	}
	if r.Requester == "" {
		return errors.NewValidationError("requester identity is required").WithField("requester")
	}
	if r.Mode < ModeFull || r.Mode > ModeWifi {
		return errors.NewValidationError("unrecognized capture mode").
			WithField("mode").
			WithValue(int(r.Mode))
	}
	return nil
}

// WantsScreenshot reports whether the caller supplied a screenshot sink.
func (r *Request) WantsScreenshot() bool {
	return r.ScreenshotSink != nil
}

// Listener receives progress and status updates for one capture session.
//
// The contract: OnProgress is called zero or more times with non-decreasing
// values in [0, 100], then exactly one of OnError or OnFinished is called,
// after which no further callbacks arrive. Callbacks for a session are never
// invoked concurrently.
type Listener interface {
	// OnProgress reports capture progress in [0.0, 100.0].
	OnProgress(progress float64)

	// OnError reports that the capture failed with the given code. Terminal.
	OnError(code ErrorCode)

	// OnFinished reports that the capture completed and the artifacts were
	// delivered to the request's sinks. Terminal.
	OnFinished()
}
