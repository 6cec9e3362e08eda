package mapping

import (
	"fmt"
	"strings"
)

// ConstraintKind is a condition on device state.
type ConstraintKind uint8

const (
	AppInForeground ConstraintKind = iota + 1
	AppNotInForeground
	OrientationPortrait
	OrientationLandscape
	ScreenOn
	ScreenOff
)

var constraintNames = map[ConstraintKind]string{
	AppInForeground:      "app_in_foreground",
	AppNotInForeground:   "app_not_in_foreground",
	OrientationPortrait:  "orientation_portrait",
	OrientationLandscape: "orientation_landscape",
	ScreenOn:             "screen_on",
	ScreenOff:            "screen_off",
}

// String returns the configuration name of the kind.
func (k ConstraintKind) String() string {
	if name, ok := constraintNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ConstraintKind(%d)", k)
}

// ParseConstraintKind parses a configuration name such as "screen_on".
func ParseConstraintKind(s string) (ConstraintKind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for k, name := range constraintNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown constraint %q", s)
}

// Constraint is one condition that must hold for a mapping to fire.
type Constraint struct {
	Kind ConstraintKind

	// PackageName is the app for the foreground constraints.
	PackageName string
}

// String returns the kind, followed by the package name if set.
func (c Constraint) String() string {
	if c.PackageName == "" {
		return c.Kind.String()
	}
	return c.Kind.String() + "(" + c.PackageName + ")"
}

// ConstraintMode combines the constraints of one mapping.
type ConstraintMode uint8

const (
	// ConstraintAnd requires every constraint to hold.
	ConstraintAnd ConstraintMode = iota
	// ConstraintOr requires at least one constraint to hold.
	ConstraintOr
)

// String returns "and" or "or".
func (m ConstraintMode) String() string {
	if m == ConstraintOr {
		return "or"
	}
	return "and"
}

// ParseConstraintMode parses "and" or "or". The empty string is ConstraintAnd.
func ParseConstraintMode(s string) (ConstraintMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return ConstraintAnd, nil
	case "or":
		return ConstraintOr, nil
	default:
		return ConstraintAnd, fmt.Errorf("unknown constraint mode %q", s)
	}
}

// ConstraintState is the constraint list of a mapping.
type ConstraintState struct {
	Constraints []Constraint
	Mode        ConstraintMode
}

func (s ConstraintState) validate(id, field string) []error {
	var errs []error
	for i, c := range s.Constraints {
		path := fmt.Sprintf("%s[%d]", field, i)
		if _, ok := constraintNames[c.Kind]; !ok {
			errs = append(errs, configErr(id, path, "unknown constraint kind %d", c.Kind))
			continue
		}
		if (c.Kind == AppInForeground || c.Kind == AppNotInForeground) && c.PackageName == "" {
			errs = append(errs, configErr(id, path, "%s requires a package name", c.Kind))
		}
	}
	if s.Mode > ConstraintOr {
		errs = append(errs, configErr(id, field+".mode", "unknown constraint mode %d", s.Mode))
	}
	return errs
}
