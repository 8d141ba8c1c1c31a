package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// Table-driven: one struct per case, one assertion loop.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("subscriber", "a@b.com"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("token", "token is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "InvalidEmail wraps ErrValidation",
			err:       InvalidEmail("email is not valid"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Unavailable wraps ErrUnavailable",
			err:       Unavailable("subscribe", errors.New("connection refused")),
			target:    ErrUnavailable,
			wantMatch: true,
		},
		{
			name:      "Unavailable keeps the cause in the chain",
			err:       Unavailable("unsubscribe", fmt.Errorf("sqlite: deactivating: %w", context.DeadlineExceeded)),
			target:    context.DeadlineExceeded,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("bad token"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "InvalidEmail does NOT match ErrUnavailable",
			err:       InvalidEmail("nope"),
			target:    ErrUnavailable,
			wantMatch: false,
		},
		{
			name:      "NotFound matches through fmt.Errorf wrapping",
			err:       fmt.Errorf("looking up: %w", NotFound("subscriber", "x")),
			target:    ErrNotFound,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestCodesAndMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantCode    string
		wantMessage string
	}{
		{
			name:        "NotFound",
			err:         NotFound("subscriber", "abc123"),
			wantCode:    CodeNotFound,
			wantMessage: "subscriber not found with key abc123",
		},
		{
			name:        "InvalidEmail",
			err:         InvalidEmail("email address is not valid"),
			wantCode:    CodeInvalidEmail,
			wantMessage: "email address is not valid",
		},
		{
			name:        "Unavailable hides the cause",
			err:         Unavailable("subscribe", errors.New("dial tcp 10.0.0.3:5432: connection refused")),
			wantCode:    CodeUnavailable,
			wantMessage: "subscribe failed: subscription store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestInvalidEmailField(t *testing.T) {
	err := InvalidEmail("invalid email format")
	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}

func TestUnavailableCause(t *testing.T) {
	cause := errors.New("boom")
	err := Unavailable("subscribe", cause)
	if err.Cause() != cause {
		t.Errorf("Cause() = %v, want %v", err.Cause(), cause)
	}
	if NotFound("subscriber", "x").Cause() != nil {
		t.Error("NotFound should carry no cause")
	}
}
