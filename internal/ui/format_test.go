package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{"zero", time.Time{}, "-"},
		{"seconds", now.Add(-30 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-49 * time.Hour), "2d ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, relativeTime(tc.in, now))
		})
	}
	old := now.Add(-90 * 24 * time.Hour)
	assert.Equal(t, old.Local().Format("2006-01-02"), relativeTime(old, now))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "-", formatDate(time.Time{}))
	ts := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	assert.Equal(t, ts.Local().Format("2006-01-02 15:04"), formatDate(ts))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("  abc  ", 10))
	assert.Equal(t, "ab", truncate("abcd", 2))
	assert.Equal(t, "abc...", truncate("abcdefghij", 6))
}

func TestOrDash(t *testing.T) {
	empty, food := "", "soup"
	assert.Equal(t, "-", orDash(nil))
	assert.Equal(t, "-", orDash(&empty))
	assert.Equal(t, "soup", orDash(&food))
}
