package shop

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opennow/core/internal/models"
)

// Display states beyond the three stored statuses. OPEN_NOW/CLOSED_NOW are
// virtual: an UNCERTAIN shop refined by its declared hours.
const (
	DisplayOpenNow   = "OPEN_NOW"
	DisplayClosedNow = "CLOSED_NOW"
)

// Display is what a client should show for a shop right now.
type Display struct {
	Status string
	Label  string
}

// DeriveDisplay computes the displayed status from the stored fields and the
// wall clock.
//
// Stored OPEN/CLOSED pass through untouched. UNCERTAIN is refined to
// OPEN_NOW/CLOSED_NOW when both declared hours parse; the window is half-open
// [open, close), and close < open means it wraps midnight. Anything
// unparsable degrades to plain UNCERTAIN.
func DeriveDisplay(status models.ShopStatus, openTime, closeTime string, now time.Time) Display {
	if status != models.StatusUncertain {
		return Display{Status: string(status)}
	}

	open, okOpen := parseClock(openTime)
	close_, okClose := parseClock(closeTime)
	if !okOpen || !okClose {
		return Display{Status: string(models.StatusUncertain)}
	}

	current := now.Hour()*60 + now.Minute()
	if inWindow(current, open, close_) {
		return Display{
			Status: DisplayOpenNow,
			Label:  fmt.Sprintf("Open (Closes %s)", formatClock12(closeTime)),
		}
	}
	return Display{
		Status: DisplayClosedNow,
		Label:  fmt.Sprintf("Closed (Opens %s)", formatClock12(openTime)),
	}
}

// inWindow implements the half-open interval check: current == open is in,
// current == close is out, also across midnight.
func inWindow(current, open, close_ int) bool {
	if close_ < open {
		return current >= open || current < close_
	}
	return current >= open && current < close_
}

// parseClock parses a "HH:MM" local-clock string into minutes since
// midnight. It never panics; malformed input reports ok=false.
func parseClock(s string) (minutes int, ok bool) {
	h, m, ok := splitClock(s)
	if !ok {
		return 0, false
	}
	return h*60 + m, true
}

func splitClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// formatClock12 renders "09:00" as "9:00 AM" for display labels.
func formatClock12(s string) string {
	h, m, ok := splitClock(s)
	if !ok {
		return s
	}
	ampm := "AM"
	if h >= 12 {
		ampm = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, ampm)
}
