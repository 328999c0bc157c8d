package workflow_test

import (
	"testing"
	"time"

	"conciera/internal/workflow"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		start, end, want string
	}{
		{"09:00", "10:30", "1h30"},
		{"09:00", "09:45", "45min"},
		{"08:00", "10:00", "2h"},
		{"09:00", "09:00", "0min"},
		{"10:00", "09:00", ""},
		{"", "10:00", ""},
		{"09:00", "", ""},
		{"", "", ""},
		{"9h00", "10:00", ""},
		{"23:15", "23:20", "5min"},
	}
	for _, c := range cases {
		if got := workflow.Duration(c.start, c.end); got != c.want {
			t.Errorf("Duration(%q, %q) = %q, want %q", c.start, c.end, got, c.want)
		}
	}
}

func TestNormalizeTimeInput(t *testing.T) {
	cases := []struct {
		prev, next, want string
	}{
		{"", "0", "0"},
		{"0", "09", "09:"},
		{"09:", "09:3", "09:3"},
		{"09:3", "09:30", "09:30"},
		{"09:30", "09:305", "09:30"},
		{"", "ab09cd", "09:"},
		{"09:", "09", "09"},
		{"", "09:30:45", "09:30"},
	}
	for _, c := range cases {
		if got := workflow.NormalizeTimeInput(c.prev, c.next); got != c.want {
			t.Errorf("NormalizeTimeInput(%q, %q) = %q, want %q", c.prev, c.next, got, c.want)
		}
	}
}

func TestClockStamp(t *testing.T) {
	got := workflow.ClockStamp(time.Date(2025, 3, 14, 8, 5, 0, 0, time.UTC))
	if got != "08:05" {
		t.Fatalf("ClockStamp = %q", got)
	}
}

func TestInboxStamp(t *testing.T) {
	now := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	cases := []struct {
		createdAt, want string
	}{
		{"2025-03-14T09:30:00Z", "09:30"},
		{"2025-03-13T22:00:00Z", "Hier"},
		{"2025-03-10T12:00:00Z", "lundi"},
		{"2025-02-01T12:00:00Z", "1 février"},
		{"not-a-date", "not-a-date"},
	}
	for _, c := range cases {
		if got := workflow.InboxStamp(c.createdAt, now); got != c.want {
			t.Errorf("InboxStamp(%q) = %q, want %q", c.createdAt, got, c.want)
		}
	}
}
