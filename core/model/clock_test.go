package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClock(t *testing.T) {
	cases := map[string]Minute{
		"08:00": 480,
		"8:05":  485,
		"00:00": 0,
		"23:59": 1439,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %d got %d", in, want, got)
		}
	}
}

func TestParseClockRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "8", "24:00", "12:60", "ab:cd", "12:5", "-1:00", "123:00"} {
		if _, err := ParseClock(in); !errors.Is(err, ErrInvalidClock) {
			t.Fatalf("expected ErrInvalidClock for %q, got %v", in, err)
		}
	}
}

func TestMinuteString(t *testing.T) {
	if s := Minute(485).String(); s != "08:05" {
		t.Fatalf("expected 08:05 got %s", s)
	}
	if s := Minute(MinutesPerDay + 90).String(); s != "01:30+1d" {
		t.Fatalf("expected 01:30+1d got %s", s)
	}
}

func TestMinuteJSONRoundTrip(t *testing.T) {
	in := Assignment{CaseID: "P1", Start: 480, End: MinutesPerDay + 30}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Assignment
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Start != in.Start || out.End != in.End {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	var m Minute
	if err := m.UnmarshalText([]byte("600")); err != nil || m != 600 {
		t.Fatalf("plain minute: %v %d", err, m)
	}
}
