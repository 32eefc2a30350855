// ABOUTME: Version policy mapping a field diff to a semantic version bump
// ABOUTME: Implements the PATCH/MINOR/MAJOR rules and the no-op and schema-change switches
package objects

import (
	"errors"
	"fmt"
	"math"

	"github.com/coreos/go-semver/semver"
)

// Bump is the component of a semantic version that a mutation increments.
type Bump int

const (
	BumpNone Bump = iota
	BumpPatch
	BumpMinor
	BumpMajor
)

func (b Bump) String() string {
	switch b {
	case BumpPatch:
		return "patch"
	case BumpMinor:
		return "minor"
	case BumpMajor:
		return "major"
	default:
		return "none"
	}
}

// ClassifyBump applies the version rules in priority order:
//  1. exactly one changed field is a PATCH
//  2. every field changed is a MAJOR
//  3. more than half of the fields changed is a MINOR
//  4. anything else, including zero changes, is a PATCH
func ClassifyBump(total, changed int) Bump {
	switch {
	case changed == 1:
		return BumpPatch
	case changed > 0 && changed == total:
		return BumpMajor
	case 2*changed > total:
		return BumpMinor
	default:
		return BumpPatch
	}
}

// ParseVersion parses a MAJOR.MINOR.PATCH string.
func ParseVersion(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", v, err)
	}
	if parsed.Major < 0 || parsed.Minor < 0 || parsed.Patch < 0 {
		return nil, fmt.Errorf("invalid version %q: negative component", v)
	}
	return parsed, nil
}

// ErrVersionExhausted is returned when the component to bump is already at
// its maximum.
var ErrVersionExhausted = errors.New("version component exhausted")

// ApplyBump returns current advanced by b. BumpNone returns current unchanged.
func ApplyBump(current string, b Bump) (string, error) {
	v, err := ParseVersion(current)
	if err != nil {
		return "", err
	}
	switch b {
	case BumpPatch:
		if v.Patch == math.MaxInt64 {
			return "", fmt.Errorf("%w: patch of %q", ErrVersionExhausted, current)
		}
		v.BumpPatch()
	case BumpMinor:
		if v.Minor == math.MaxInt64 {
			return "", fmt.Errorf("%w: minor of %q", ErrVersionExhausted, current)
		}
		v.BumpMinor()
	case BumpMajor:
		if v.Major == math.MaxInt64 {
			return "", fmt.Errorf("%w: major of %q", ErrVersionExhausted, current)
		}
		v.BumpMajor()
	}
	return v.String(), nil
}

// NextVersion applies the literal policy: it always advances the version,
// even when nothing changed.
func NextVersion(current string, total, changed int) (string, error) {
	return ApplyBump(current, ClassifyBump(total, changed))
}

// VersionPolicy holds the two behaviours left to configuration.
type VersionPolicy struct {
	// BumpOnNoop advances PATCH on an update that changes nothing.
	BumpOnNoop bool
	// CountSchemaChanges counts added and removed field names as changes.
	CountSchemaChanges bool
}

// ChangedCount is the number of changes the policy acts on for d.
func (p VersionPolicy) ChangedCount(d FieldDiff) int {
	n := len(d.Changed)
	if p.CountSchemaChanges {
		n += len(d.Added) + len(d.Removed)
	}
	return n
}

// Next returns the version that follows current for an object that ends up
// with total fields after applying d.
func (p VersionPolicy) Next(current string, total int, d FieldDiff) (string, Bump, error) {
	changed := p.ChangedCount(d)
	b := ClassifyBump(total, changed)
	if changed == 0 && !p.BumpOnNoop {
		b = BumpNone
	}
	next, err := ApplyBump(current, b)
	if err != nil {
		return "", BumpNone, err
	}
	return next, b, nil
}
