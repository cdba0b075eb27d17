package domain

import (
	"strings"
	"time"

	dErrors "pps/pkg/domain-errors"
)

// KeySeparator joins the parts of composite keys ("district::group").
const KeySeparator = "::"

// DateLayout is the persisted birthdate format (DD-MM-YYYY).
const DateLayout = "02-01-2006"

// JoinKey builds a composite key.
func JoinKey(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

// SplitKey breaks a composite key into its parts.
func SplitKey(key string) []string {
	return strings.Split(key, KeySeparator)
}

// ObjectiveID identifies a catalog objective and, by extension, an active or
// archived task: stage::area::subline.
type ObjectiveID struct {
	Stage   Stage
	Area    Area
	Subline string
}

// NewObjectiveID validates the parts of an objective id.
func NewObjectiveID(stage, area, subline string) (ObjectiveID, error) {
	st, err := ParseStage(stage)
	if err != nil {
		return ObjectiveID{}, err
	}
	a, err := ParseArea(area)
	if err != nil {
		return ObjectiveID{}, err
	}
	if subline == "" || strings.Contains(subline, KeySeparator) {
		return ObjectiveID{}, dErrors.New(dErrors.CodeValidation, "invalid subline: "+subline)
	}
	return ObjectiveID{Stage: st, Area: a, Subline: subline}, nil
}

// ParseObjectiveID splits "stage::area::subline" by fixed position.
//
// Errors: returns CodeValidation when there are not exactly three parts or a
// part is invalid.
func ParseObjectiveID(s string) (ObjectiveID, error) {
	parts := SplitKey(s)
	if len(parts) != 3 {
		return ObjectiveID{}, dErrors.New(dErrors.CodeValidation, "objective id must be stage::area::subline")
	}
	return NewObjectiveID(parts[0], parts[1], parts[2])
}

func (o ObjectiveID) String() string {
	return JoinKey(string(o.Stage), string(o.Area), o.Subline)
}

// ParseDate parses a DD-MM-YYYY date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "invalid date format, it must match DD-MM-YYYY")
	}
	return t, nil
}

// FormatDate renders a date as DD-MM-YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
