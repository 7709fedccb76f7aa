package evaluation

import (
	"fmt"
	"time"
	_ "time/tzdata" // the business timezone must not depend on the host's zoneinfo

	"github.com/pkg/errors"
)

var (
	ErrClosedDay   = errors.New("outside business days")
	ErrClosedHours = errors.New("outside business hours")
)

// Calendar tells whether an instant falls on a business day and within business hours,
// both evaluated in a fixed named timezone.
type Calendar struct {
	loc        *time.Location
	start, end dayTime
}

type dayTime struct {
	hour, min int
}

func (dt dayTime) String() string {
	return fmt.Sprintf("%02d:%02d", dt.hour, dt.min)
}

func parseDayTime(s string) (dayTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return dayTime{}, errors.Wrapf(err, "invalid time of day %q", s)
	}
	return dayTime{hour: t.Hour(), min: t.Minute()}, nil
}

// NewCalendar builds a Calendar open Monday to Friday, from start to end (inclusive, "HH:MM").
func NewCalendar(timezone, start, end string) (Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Calendar{}, errors.Wrapf(err, "loading timezone %q", timezone)
	}
	s, err := parseDayTime(start)
	if err != nil {
		return Calendar{}, err
	}
	e, err := parseDayTime(end)
	if err != nil {
		return Calendar{}, err
	}
	if e.hour*60+e.min <= s.hour*60+s.min {
		return Calendar{}, errors.Errorf("business hours end %s is not after start %s", e, s)
	}
	return Calendar{loc: loc, start: s, end: e}, nil
}

func (c Calendar) Location() *time.Location { return c.loc }

// Hours describes the daily window, e.g. "08:30 - 18:30, America/Merida time".
func (c Calendar) Hours() string {
	return fmt.Sprintf("%s - %s, %s time", c.start, c.end, c.loc)
}

// Check returns ErrClosedDay on weekends and ErrClosedHours outside the daily window.
// The day is checked first.
func (c Calendar) Check(t time.Time) error {
	local := t.In(c.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return ErrClosedDay
	}

	y, m, d := local.Date()
	open := time.Date(y, m, d, c.start.hour, c.start.min, 0, 0, c.loc)
	closing := time.Date(y, m, d, c.end.hour, c.end.min, 0, 0, c.loc)
	if local.Before(open) || local.After(closing) {
		return ErrClosedHours
	}
	return nil
}
