package domain

import (
	dErrors "pps/pkg/domain-errors"
)

// Stage is the age-derived life-phase bucket of a beneficiary.
// Invariant: the value must be one of the two supported stages.
//
// Usage: construct via ParseStage at trust boundaries; direct casting
// bypasses validation.
type Stage string

const (
	// StagePrepuberty is the younger bucket (age < 13).
	StagePrepuberty Stage = "prepuberty"
	// StagePuberty is the older bucket.
	StagePuberty Stage = "puberty"
)

// Stages lists stages youngest first.
var Stages = []Stage{StagePrepuberty, StagePuberty}

// ParseStage constructs a Stage from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseStage(s string) (Stage, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "stage cannot be empty")
	}
	st := Stage(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid stage: "+s)
	}
	return st, nil
}

func (s Stage) IsValid() bool {
	return s == StagePrepuberty || s == StagePuberty
}

func (s Stage) String() string {
	return string(s)
}

// Area is a scoring category and the key of the score ledger buckets.
type Area string

const (
	AreaCorporality  Area = "corporality"
	AreaCreativity   Area = "creativity"
	AreaCharacter    Area = "character"
	AreaAffectivity  Area = "affectivity"
	AreaSociability  Area = "sociability"
	AreaSpirituality Area = "spirituality"
)

// Areas is the single source of truth for ledger buckets. Every beneficiary
// ledger is initialized with one zero entry per area.
var Areas = []Area{
	AreaCorporality,
	AreaCreativity,
	AreaCharacter,
	AreaAffectivity,
	AreaSociability,
	AreaSpirituality,
}

var validAreas = func() map[Area]bool {
	m := make(map[Area]bool, len(Areas))
	for _, a := range Areas {
		m[a] = true
	}
	return m
}()

// ParseArea constructs an Area from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseArea(s string) (Area, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "area cannot be empty")
	}
	a := Area(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid area: "+s)
	}
	return a, nil
}

func (a Area) IsValid() bool {
	return validAreas[a]
}

func (a Area) String() string {
	return string(a)
}

// ZeroLedger returns a per-area ledger with every area set to zero.
func ZeroLedger() map[string]int64 {
	out := make(map[string]int64, len(Areas))
	for _, a := range Areas {
		out[string(a)] = 0
	}
	return out
}

// Unit is the section of a group a beneficiary belongs to.
type Unit string

const (
	UnitScouts Unit = "scouts"
	UnitGuides Unit = "guides"
)

// ParseUnit constructs a Unit from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(s); u {
	case UnitScouts, UnitGuides:
		return u, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "unit cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "invalid unit: "+s)
	}
}

func (u Unit) String() string {
	return string(u)
}
