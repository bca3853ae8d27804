package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Venue struct {
	ID       int64
	OwnerID  int64
	Name     string
	Category string
	Coords   *Coords
	Hours    BusinessHours
	IconURL  *string
	Active   bool
}

type Coords struct{ Lat, Lng float64 }

// BusinessHours maps each weekday to its schedule. A missing day means the
// venue is closed that day; an empty map means no schedule is configured at
// all (the display override never applies then).
type BusinessHours map[time.Weekday]DaySchedule

// DaySchedule times are HHMM integers (17:30 -> 1730) so windows compare as
// plain ints. ClosesNextDay marks a window that runs past local midnight.
type DaySchedule struct {
	Open          *int
	Close         *int
	ClosesNextDay bool
}

// Wire format: {"mon":{"open":"17:00","close":"04:00","closes_next_day":true},...}
// Shared by the venues table JSON column, the seeder input and API payloads.

var dayKeys = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

var dayNames = map[time.Weekday]string{
	time.Sunday: "sun", time.Monday: "mon", time.Tuesday: "tue",
	time.Wednesday: "wed", time.Thursday: "thu", time.Friday: "fri",
	time.Saturday: "sat",
}

type daySchedulePayload struct {
	Open          *string `json:"open,omitempty"`
	Close         *string `json:"close,omitempty"`
	ClosesNextDay bool    `json:"closes_next_day,omitempty"`
}

func (h BusinessHours) MarshalJSON() ([]byte, error) {
	out := make(map[string]daySchedulePayload, len(h))
	for wd, d := range h {
		out[dayNames[wd]] = daySchedulePayload{
			Open:          hhmmString(d.Open),
			Close:         hhmmString(d.Close),
			ClosesNextDay: d.ClosesNextDay,
		}
	}
	return json.Marshal(out)
}

func (h *BusinessHours) UnmarshalJSON(b []byte) error {
	var raw map[string]daySchedulePayload
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(BusinessHours, len(raw))
	for k, p := range raw {
		wd, ok := dayKeys[strings.ToLower(k)]
		if !ok {
			return fmt.Errorf("business hours: unknown weekday %q", k)
		}
		open, err := hhmmInt(p.Open)
		if err != nil {
			return err
		}
		cl, err := hhmmInt(p.Close)
		if err != nil {
			return err
		}
		out[wd] = DaySchedule{Open: open, Close: cl, ClosesNextDay: p.ClosesNextDay}
	}
	*h = out
	return nil
}

func hhmmString(v *int) *string {
	if v == nil {
		return nil
	}
	s := fmt.Sprintf("%02d:%02d", *v/100, *v%100)
	return &s
}

func hhmmInt(s *string) (*int, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var hh, mm int
	if _, err := fmt.Sscanf(*s, "%d:%d", &hh, &mm); err != nil {
		return nil, fmt.Errorf("business hours: bad time %q", *s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return nil, fmt.Errorf("business hours: time out of range %q", *s)
	}
	v := hh*100 + mm
	return &v, nil
}
