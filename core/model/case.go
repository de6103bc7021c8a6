package model

import "slices"

// PinState classifies how much freedom the scheduler has over a case during
// one re-plan cycle.
type PinState int

const (
	// PinFloating cases may move to any compatible room and start.
	PinFloating PinState = iota
	// PinLocked cases already started: start and room are frozen.
	PinLocked
	// PinExplicit cases are emergencies bound to the emergency room.
	PinExplicit
)

// String returns a human-readable representation of the pin state.
func (s PinState) String() string {
	switch s {
	case PinFloating:
		return "floating"
	case PinLocked:
		return "locked"
	case PinExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// Pin is the placement constraint attached to a case for the current cycle.
type Pin struct {
	State PinState `json:"state"`
	// Room is the forced room of locked and explicit cases.
	Room string `json:"room,omitempty"`
	// Start is the exact start of a locked case, and the earliest start of an
	// explicit one.
	Start Minute `json:"start,omitempty"`
	// Held marks an explicit case whose operation has begun; its start no
	// longer moves.
	Held bool `json:"held,omitempty"`
}

// Floating returns the free pin.
func Floating() Pin { return Pin{State: PinFloating} }

// LockedAt freezes a case to a previously solved room and start.
func LockedAt(room string, start Minute) Pin {
	return Pin{State: PinLocked, Room: room, Start: start}
}

// ExplicitIn binds an emergency to a room, not before arrival.
func ExplicitIn(room string, arrival Minute) Pin {
	return Pin{State: PinExplicit, Room: room, Start: arrival}
}

// Hold freezes an explicit pin at the given start.
func (p Pin) Hold(start Minute) Pin {
	if p.State != PinExplicit {
		return p
	}
	p.Start = start
	p.Held = true
	return p
}

// FixedStart returns the start the scheduler must reproduce, if any.
func (p Pin) FixedStart() (Minute, bool) {
	switch p.State {
	case PinLocked:
		return p.Start, true
	case PinExplicit:
		return p.Start, p.Held
	default:
		return 0, false
	}
}

// FixedRoom returns the room the scheduler must use, if any.
func (p Pin) FixedRoom() (string, bool) {
	if p.State == PinFloating {
		return "", false
	}
	return p.Room, true
}

// Case is a surgical case on the active roster.
type Case struct {
	ID        string   `json:"id"`
	Procedure string   `json:"procedure"`
	Clinician string   `json:"clinician"`
	Duration  int      `json:"duration"`
	Severity  int      `json:"severity"`
	Equipment []string `json:"equipment,omitempty"`
	// Ready is the earliest permissible start.
	Ready Minute `json:"ready"`
	// MinStart is an additional floor applied to floating cases so they are
	// never scheduled in the past.
	MinStart  Minute `json:"min_start"`
	Pin       Pin    `json:"pin"`
	Emergency bool   `json:"emergency,omitempty"`
}

// Needs reports whether the case uses the named equipment pool.
func (c Case) Needs(pool string) bool { return slices.Contains(c.Equipment, pool) }

// Clone returns a deep copy of the case.
func (c Case) Clone() Case {
	c.Equipment = slices.Clone(c.Equipment)
	return c
}

// CaseRecord is a case as delivered by the ingestion collaborator.
type CaseRecord struct {
	ID        string          `json:"id" yaml:"id"`
	Procedure string          `json:"procedure" yaml:"procedure"`
	Clinician string          `json:"clinician" yaml:"clinician"`
	Severity  int             `json:"severity" yaml:"severity"`
	Equipment map[string]bool `json:"equipment,omitempty" yaml:"equipment,omitempty"`
	// Features are passed through to the duration predictor untouched.
	Features map[string]float64 `json:"features,omitempty" yaml:"features,omitempty"`
}

// EquipmentNames returns the pools flagged true, sorted.
func (r CaseRecord) EquipmentNames() []string {
	var out []string
	for name, need := range r.Equipment {
		if need {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
