package printer

import (
	"fmt"
	"time"
)

// TimeAgo returns a human-readable relative time string in UTC.
// Examples: "5 seconds ago (UTC)", "2 minutes ago (UTC)", "3 hours ago (UTC)".
func TimeAgo(t time.Time) string {
	diff := time.Now().UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	switch {
	case diff < time.Minute:
		return plural(int(diff.Seconds()), "second") + " ago (UTC)"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago (UTC)"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago (UTC)"
	default:
		return plural(int(diff.Hours()/24), "day") + " ago (UTC)"
	}
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// ExecutionDuration returns how long an execution ran, "-" if it never started.
// Unfinished executions are measured until now.
func ExecutionDuration(startedAt, finishedAt *time.Time) string {
	if startedAt == nil {
		return "-"
	}

	end := time.Now().UTC()
	if finishedAt != nil {
		end = *finishedAt
	}

	d := end.Sub(*startedAt)
	if d < 0 {
		d = 0
	}

	return d.Truncate(time.Second).String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
