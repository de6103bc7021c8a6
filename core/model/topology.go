package model

import (
	"errors"
	"fmt"
	"slices"
)

// Room is an operating theatre able to host a set of procedure types.
type Room struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Supports []string `json:"supports"`
}

// Hosts reports whether the room accepts the procedure type.
func (r Room) Hosts(procedure string) bool {
	return slices.Contains(r.Supports, procedure)
}

// Clinician is a surgeon and the procedure types they may perform. Backup
// clinicians are only routed to when the primary for a specialty is busy.
type Clinician struct {
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
	Backup      bool     `json:"backup"`
}

// Performs reports whether the clinician is qualified for the procedure.
func (c Clinician) Performs(procedure string) bool {
	return slices.Contains(c.Specialties, procedure)
}

// EquipmentPool is a shared device type with a limited number of units.
type EquipmentPool struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// Constants are the operational rules of the theatre suite.
type Constants struct {
	DayStart Minute `json:"day_start"`
	DayEnd   Minute `json:"day_end"`
	// TurnoverMinutes extends a room's busy window after each case.
	TurnoverMinutes int `json:"turnover_minutes"`
	// BreakMinutes extends a clinician's busy window after each case.
	BreakMinutes int `json:"break_minutes"`
}

// EmergencyPolicy configures how emergency admissions are synthesized.
type EmergencyPolicy struct {
	Room            string `json:"room"`
	DurationMinutes int    `json:"duration_minutes"`
	Severity        int    `json:"severity"`
	// Primary maps a procedure type to the clinician on call for it.
	Primary map[string]string `json:"primary"`
	// DefaultPrimary is used for procedure types missing from Primary.
	DefaultPrimary string `json:"default_primary"`
}

// Topology is the static resource configuration of a hospital. It is loaded
// once and never mutated afterwards.
type Topology struct {
	Rooms      []Room          `json:"rooms"`
	Clinicians []Clinician     `json:"clinicians"`
	Equipment  []EquipmentPool `json:"equipment"`
	Constants  Constants       `json:"constants"`
	Emergency  EmergencyPolicy `json:"emergency"`
}

// SetDefaults fills the operational constants left empty.
func (t *Topology) SetDefaults() {
	if t.Constants.DayStart == 0 && t.Constants.DayEnd == 0 {
		t.Constants.DayStart = 8 * 60
		t.Constants.DayEnd = 20 * 60
	}
	if t.Constants.TurnoverMinutes == 0 {
		t.Constants.TurnoverMinutes = 30
	}
	if t.Constants.BreakMinutes == 0 {
		t.Constants.BreakMinutes = 30
	}
	if t.Emergency.DurationMinutes == 0 {
		t.Emergency.DurationMinutes = 120
	}
	if t.Emergency.Severity == 0 {
		t.Emergency.Severity = 4
	}
}

// Validate checks identifiers are unique and cross references resolve.
func (t Topology) Validate() error {
	if len(t.Rooms) == 0 {
		return errors.New("topology: at least one room is required")
	}
	rooms := make(map[string]bool, len(t.Rooms))
	for _, r := range t.Rooms {
		if r.ID == "" {
			return errors.New("topology: room id is required")
		}
		if rooms[r.ID] {
			return fmt.Errorf("topology: duplicate room %s", r.ID)
		}
		rooms[r.ID] = true
	}
	clinicians := make(map[string]bool, len(t.Clinicians))
	for _, c := range t.Clinicians {
		if c.Name == "" {
			return errors.New("topology: clinician name is required")
		}
		if clinicians[c.Name] {
			return fmt.Errorf("topology: duplicate clinician %s", c.Name)
		}
		clinicians[c.Name] = true
	}
	pools := make(map[string]bool, len(t.Equipment))
	for _, e := range t.Equipment {
		if e.Capacity <= 0 {
			return fmt.Errorf("topology: equipment %s capacity must be positive", e.Name)
		}
		if pools[e.Name] {
			return fmt.Errorf("topology: duplicate equipment %s", e.Name)
		}
		pools[e.Name] = true
	}
	c := t.Constants
	if c.DayStart < 0 || c.DayEnd <= c.DayStart {
		return fmt.Errorf("topology: day_start %s must precede day_end %s", c.DayStart, c.DayEnd)
	}
	if c.TurnoverMinutes < 0 || c.BreakMinutes < 0 {
		return errors.New("topology: turnover and break must not be negative")
	}
	if t.Emergency.Room == "" {
		return errors.New("topology: emergency room is required")
	}
	if !rooms[t.Emergency.Room] {
		return fmt.Errorf("topology: unknown emergency room %s", t.Emergency.Room)
	}
	for proc, name := range t.Emergency.Primary {
		if !clinicians[name] {
			return fmt.Errorf("topology: primary %s for %s is not on the roster", name, proc)
		}
	}
	if t.Emergency.DefaultPrimary != "" && !clinicians[t.Emergency.DefaultPrimary] {
		return fmt.Errorf("topology: default primary %s is not on the roster", t.Emergency.DefaultPrimary)
	}
	return nil
}

// Room returns the room with the given id.
func (t Topology) Room(id string) (Room, bool) {
	for _, r := range t.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// Clinician returns the clinician with the given name.
func (t Topology) Clinician(name string) (Clinician, bool) {
	for _, c := range t.Clinicians {
		if c.Name == name {
			return c, true
		}
	}
	return Clinician{}, false
}

// PrimaryFor returns the on-call clinician for an emergency of the given type.
func (t Topology) PrimaryFor(procedure string) string {
	if name, ok := t.Emergency.Primary[procedure]; ok {
		return name
	}
	return t.Emergency.DefaultPrimary
}

// BackupFor returns the first backup clinician qualified for the procedure.
func (t Topology) BackupFor(procedure string) (Clinician, bool) {
	for _, c := range t.Clinicians {
		if c.Backup && c.Performs(procedure) {
			return c, true
		}
	}
	return Clinician{}, false
}
