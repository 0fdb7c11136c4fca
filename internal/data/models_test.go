package data

import (
	"strings"
	"testing"
	"time"

	"github.com/harlequingg/taskmanager-api/internal/validator"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"snake_case", `snake\_case`},
		{`back\slash`, `back\\slash`},
		{"a.*+?", "a.*+?"},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Fatalf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateNotificationRequiresFields(t *testing.T) {
	v := validator.New()
	ValidateNotification(v, &Notification{})

	for _, field := range []string{"user", "task", "title", "message", "scheduled_for", "type", "priority"} {
		if _, ok := v.Errors[field]; !ok {
			t.Fatalf("expected error for %q, got %v", field, v.Errors)
		}
	}
}

func TestValidateNotificationAcceptsCompleteRecord(t *testing.T) {
	v := validator.New()
	ValidateNotification(v, &Notification{
		UserID:       1,
		TaskID:       2,
		Type:         NotificationOverdue,
		Title:        "Task Overdue",
		Message:      `Task "Report" is overdue`,
		Priority:     NotificationPriorityHigh,
		ScheduledFor: time.Now(),
	})
	if !v.Valid() {
		t.Fatalf("expected notification to be valid, got %v", v.Errors)
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Errors: map[string]string{"title": "must be provided", "message": "must be provided"}}
	got := err.Error()
	if !strings.HasPrefix(got, "validation failed: message:") {
		t.Fatalf("expected fields in sorted order, got %q", got)
	}
}

func TestValidateTask(t *testing.T) {
	v := validator.New()
	ValidateTask(v, &Task{Title: " ", Status: "done", Priority: "urgent"})
	for _, field := range []string{"title", "status", "priority"} {
		if _, ok := v.Errors[field]; !ok {
			t.Fatalf("expected error for %q, got %v", field, v.Errors)
		}
	}
}

func TestUserPasswordRoundTrip(t *testing.T) {
	var u User
	if err := u.SetPassword("correct horse"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	ok, err := u.PasswordMatches("correct horse")
	if err != nil || !ok {
		t.Fatalf("expected password to match, ok=%v err=%v", ok, err)
	}
	ok, err = u.PasswordMatches("wrong")
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestPasswordResetFieldsMoveTogether(t *testing.T) {
	var u User
	u.SetPasswordReset("hash", time.Now().Add(ResetTokenTTL))
	if u.ResetPasswordToken == nil || u.ResetPasswordExpire == nil {
		t.Fatalf("expected both reset fields to be set")
	}
	u.ClearPasswordReset()
	if u.ResetPasswordToken != nil || u.ResetPasswordExpire != nil {
		t.Fatalf("expected both reset fields to be cleared")
	}
}

func TestGenerateResetToken(t *testing.T) {
	plain, hash, err := GenerateResetToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if len(plain) != 40 {
		t.Fatalf("expected 40 hex characters, got %d", len(plain))
	}
	if hash != HashResetToken(plain) {
		t.Fatalf("expected stored hash to match plaintext hash")
	}
	if hash == plain {
		t.Fatalf("expected hash to differ from plaintext")
	}
}
