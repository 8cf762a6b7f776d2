package caldav

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Event is an all-day or timed calendar entry.
type Event struct {
	UID         string
	Summary     string
	Description string
	Categories  []string
	Start       time.Time
	End         time.Time // exclusive; zero means one day for all-day events
	AllDay      bool
	RRule       *rrule.ROption
	Completed   bool
}
