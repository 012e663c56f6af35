package bugreport

import (
	"bytes"
	"testing"

	"github.com/DigiGoon/bugrd/internal/errors"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
		ok    bool
	}{
		{"full", ModeFull, true},
		{"FULL", ModeFull, true},
		{"interactive", ModeInteractive, true},
		{"remote", ModeRemote, true},
		{"wear", ModeWear, true},
		{"telephony", ModeTelephony, true},
		{"wifi", ModeWifi, true},
		{"bogus", ModeFull, false},
		{"", ModeFull, false},
	}

	for _, tt := range tests {
		got, ok := ParseMode(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMode(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMode_StringRoundTrip(t *testing.T) {
	for _, name := range ValidModes() {
		mode, ok := ParseMode(name)
		if !ok {
			t.Fatalf("ParseMode(%q) not ok", name)
		}
		if mode.String() != name {
			t.Errorf("Mode %q round-tripped to %q", name, mode.String())
		}
	}
}

func TestErrorCode_String(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{CodeInvalidInput, "INVALID_INPUT"},
		{CodeRuntime, "RUNTIME"},
		{CodeUserDeniedConsent, "USER_DENIED_CONSENT"},
		{CodeUserConsentTimedOut, "USER_CONSENT_TIMED_OUT"},
		{ErrorCode(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("ErrorCode(%d).String() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestErrorCode_Err(t *testing.T) {
	if !errors.Is(CodeUserDeniedConsent.Err(), errors.ErrUserDeniedConsent) {
		t.Error("CodeUserDeniedConsent should map to ErrUserDeniedConsent")
	}
	if !errors.Is(CodeUserConsentTimedOut.Err(), errors.ErrUserConsentTimedOut) {
		t.Error("CodeUserConsentTimedOut should map to ErrUserConsentTimedOut")
	}
	if !errors.Is(CodeInvalidInput.Err(), errors.ErrInvalidInput) {
		t.Error("CodeInvalidInput should map to ErrInvalidInput")
	}
}

func TestClampProgress(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{250, 100},
	}

	for _, tt := range tests {
		if got := ClampProgress(tt.input); got != tt.want {
			t.Errorf("ClampProgress(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRequest_Validate(t *testing.T) {
	var sink bytes.Buffer

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{
			name:    "valid minimal",
			req:     Request{Mode: ModeFull, ReportSink: &sink, Requester: "com.example.shell"},
			wantErr: false,
		},
		{
			name:    "valid with screenshot",
			req:     Request{Mode: ModeInteractive, ReportSink: &sink, ScreenshotSink: &sink, Requester: "com.example.shell"},
			wantErr: false,
		},
		{
			name:    "missing report sink",
			req:     Request{Mode: ModeFull, Requester: "com.example.shell"},
			wantErr: true,
		},
		{
			name:    "missing requester",
			req:     Request{Mode: ModeFull, ReportSink: &sink},
			wantErr: true,
		},
		{
			name:    "bad mode",
			req:     Request{Mode: Mode(42), ReportSink: &sink, Requester: "com.example.shell"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("validation error %v should match ErrInvalidInput", err)
			}
		})
	}
}

func TestRequest_WantsScreenshot(t *testing.T) {
	var sink bytes.Buffer
	req := Request{Mode: ModeFull, ReportSink: &sink, Requester: "r"}
	if req.WantsScreenshot() {
		t.Error("request without screenshot sink should not want a screenshot")
	}
	req.ScreenshotSink = &sink
	if !req.WantsScreenshot() {
		t.Error("request with screenshot sink should want a screenshot")
	}
}
