package util

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

func IsURL(value string) bool {
	u, err := url.ParseRequestURI(value)
	if err != nil {
		return false
	}

	return u.Scheme != "" && u.Host != ""
}

// CacheBust appends a "t" query parameter so CDNs and browsers fetch a
// freshly uploaded object instead of a stale copy.
func CacheBust(rawURL string, at time.Time) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("%s?t=%d", rawURL, at.UnixMilli())
	}
	q := u.Query()
	q.Set("t", fmt.Sprintf("%d", at.UnixMilli()))
	u.RawQuery = q.Encode()
	return u.String()
}

// SinceForRange converts a date-range preset into a lower bound on
// created_at. "all" and unknown presets return nil.
func SinceForRange(preset string, now time.Time) *time.Time {
	var since time.Time
	switch preset {
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "year":
		since = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &since
}

// StrPtr returns nil for an empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
