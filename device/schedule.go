package device

import (
	"fmt"
	"time"
)

// ScheduleMode is the programmed state of one weekly schedule slot.
type ScheduleMode byte

const (
	ScheduleComfort ScheduleMode = 'C'
	ScheduleEco     ScheduleMode = 'E'
	ScheduleNone    ScheduleMode = 'O'
)

// String returns the human name of the slot mode.
func (m ScheduleMode) String() string {
	switch m {
	case ScheduleComfort:
		return "comfort"
	case ScheduleEco:
		return "eco"
	default:
		return "none"
	}
}

// Schedule is a device's weekly program: one slot per weekday and hour.
// Day 0 is Monday, matching the cloud's encoding.
type Schedule [7][24]ScheduleMode

// ParseSchedule builds a Schedule from the cloud's encoding: seven strings
// of 24 characters, one character per hour ('C', 'E' or 'O').
func ParseSchedule(days []string) (Schedule, error) {
	var schedule Schedule

	if len(days) != 7 {
		return schedule, fmt.Errorf("schedule has %d days, want 7", len(days))
	}

	for day, hours := range days {
		if len(hours) != 24 {
			return schedule, fmt.Errorf("schedule day %d has %d hours, want 24", day, len(hours))
		}
		for hour := 0; hour < 24; hour++ {
			schedule[day][hour] = ScheduleMode(hours[hour])
		}
	}

	return schedule, nil
}

// Slot returns the programmed mode for a weekday (0 = Monday) and hour.
// Out-of-range indexes resolve to ScheduleNone.
func (s Schedule) Slot(day, hour int) ScheduleMode {
	if day < 0 || day >= 7 || hour < 0 || hour >= 24 {
		return ScheduleNone
	}

	mode := s[day][hour]
	if mode != ScheduleComfort && mode != ScheduleEco {
		return ScheduleNone
	}
	return mode
}

// SlotAt returns the programmed mode active at the given time.
func (s Schedule) SlotAt(t time.Time) ScheduleMode {
	// time.Weekday counts from Sunday; the schedule counts from Monday.
	day := (int(t.Weekday()) + 6) % 7
	return s.Slot(day, t.Hour())
}

// CurrentScheduleMode returns the schedule slot active right now.
func (d *Device) CurrentScheduleMode() ScheduleMode {
	return d.Schedule.SlotAt(time.Now().UTC())
}
