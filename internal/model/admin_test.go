package model

import (
	"testing"
	"time"
)

func TestAdminLocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name  string
		until *time.Time
		want  bool
	}{
		{"no lock", nil, false},
		{"expired lock", &past, false},
		{"lock boundary", &now, false},
		{"active lock", &future, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Admin{LockedUntil: tc.until}
			if got := a.Locked(now); got != tc.want {
				t.Errorf("Locked: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAdminSanitized(t *testing.T) {
	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Admin{
		ID:             1,
		Username:       "admin",
		PasswordHash:   "$2a$10$hash",
		FailedAttempts: 3,
		LockedUntil:    &until,
		IsActive:       true,
	}

	out := a.Sanitized()
	if out.PasswordHash != "" || out.FailedAttempts != 0 || out.LockedUntil != nil {
		t.Errorf("Sanitized leaked internals: %+v", out)
	}
	if out.ID != 1 || out.Username != "admin" || !out.IsActive {
		t.Errorf("Sanitized dropped public fields: %+v", out)
	}
	if a.PasswordHash == "" {
		t.Error("Sanitized must not mutate the receiver")
	}
}
