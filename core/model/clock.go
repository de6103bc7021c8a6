package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidClock is returned when a wall-clock string is not a valid HH:MM.
var ErrInvalidClock = errors.New("invalid clock time")

// MinutesPerDay is the length of one calendar day in minutes.
const MinutesPerDay = 24 * 60

// Minute is a point on the planning horizon expressed in minutes since
// midnight of the planning day. Values beyond MinutesPerDay belong to the
// following day.
type Minute int

// ParseClock converts "HH:MM" into a Minute. Hours must be in [0,23] and
// minutes in [0,59].
func ParseClock(s string) (Minute, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Minute(h*60 + m), nil
}

// MustClock is ParseClock for constants in tests and defaults.
func MustClock(s string) Minute {
	m, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the minute as HH:MM. Minutes on the second horizon day get a
// "+1d" suffix.
func (m Minute) String() string {
	if m < 0 {
		return fmt.Sprintf("-%s", (-m).String())
	}
	day := int(m) / MinutesPerDay
	rest := int(m) % MinutesPerDay
	s := fmt.Sprintf("%02d:%02d", rest/60, rest%60)
	if day > 0 {
		s += fmt.Sprintf("+%dd", day)
	}
	return s
}

// MarshalText implements encoding.TextMarshaler so schedules serialize with
// readable times.
func (m Minute) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText accepts either HH:MM or a plain minute count.
func (m *Minute) UnmarshalText(b []byte) error {
	s := string(b)
	if n, err := strconv.Atoi(s); err == nil {
		*m = Minute(n)
		return nil
	}
	if base, suffix, ok := strings.Cut(s, "+"); ok {
		v, err := ParseClock(base)
		if err != nil {
			return err
		}
		days, err := strconv.Atoi(strings.TrimSuffix(suffix, "d"))
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		*m = v + Minute(days*MinutesPerDay)
		return nil
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Max returns the latest of the given minutes.
func Max(first Minute, rest ...Minute) Minute {
	out := first
	for _, m := range rest {
		if m > out {
			out = m
		}
	}
	return out
}
