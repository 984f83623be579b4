package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-billing/pkg/apperrors"
)

const dateLayout = "2006-01-02"

// Window is a half-open [Start, End) range over appointment dates. A nil
// bound leaves that side open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Bounded reports whether both ends are set.
func (w Window) Bounded() bool {
	return w.Start != nil && w.End != nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && !t.Before(*w.End) {
		return false
	}
	return true
}

// MonthWindow returns the UTC calendar month containing now.
func MonthWindow(now time.Time) Window {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return Window{Start: &start, End: &end}
}

// ParseWindow parses optional start/end query values. Each accepts
// YYYY-MM-DD or RFC3339. A date-only end includes that whole day.
func ParseWindow(startRaw, endRaw string) (Window, error) {
	var w Window
	if s := strings.TrimSpace(startRaw); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return Window{}, apperrors.NewValidationError(fmt.Sprintf("invalid start date %q, use YYYY-MM-DD or RFC3339", s))
		}
		w.Start = &t
	}
	if s := strings.TrimSpace(endRaw); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return Window{}, apperrors.NewValidationError(fmt.Sprintf("invalid end date %q, use YYYY-MM-DD or RFC3339", s))
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		w.End = &t
	}
	if w.Bounded() && !w.End.After(*w.Start) {
		return Window{}, apperrors.NewValidationError("end must be after start")
	}
	return w, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
