// ABOUTME: Tests for the version policy
// ABOUTME: Pins the PATCH/MINOR/MAJOR thresholds and the configurable no-op behaviour
package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextVersionFourFields(t *testing.T) {
	tests := []struct {
		name    string
		changed int
		want    string
	}{
		{"one field is a patch", 1, "1.0.1"},
		{"two of four is not a majority", 2, "1.0.1"},
		{"three of four is a minor", 3, "1.1.0"},
		{"all four is a major", 4, "2.0.0"},
		{"zero changes falls through to patch", 0, "1.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextVersion("1.0.0", 4, tt.changed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyBumpPriority(t *testing.T) {
	// A single-field object changing its only field hits rule 1 before rule 2.
	assert.Equal(t, BumpPatch, ClassifyBump(1, 1))
	assert.Equal(t, BumpMajor, ClassifyBump(2, 2))
	assert.Equal(t, BumpMinor, ClassifyBump(5, 3))
	assert.Equal(t, BumpPatch, ClassifyBump(6, 3))
	// No changes never reaches the major rule, even with no fields.
	assert.Equal(t, BumpPatch, ClassifyBump(0, 0))
}

func TestApplyBumpResetsLowerComponents(t *testing.T) {
	v, err := ApplyBump("3.4.5", BumpMajor)
	require.NoError(t, err)
	assert.Equal(t, "4.0.0", v)

	v, err = ApplyBump("3.4.5", BumpMinor)
	require.NoError(t, err)
	assert.Equal(t, "3.5.0", v)

	v, err = ApplyBump("3.4.5", BumpPatch)
	require.NoError(t, err)
	assert.Equal(t, "3.4.6", v)

	v, err = ApplyBump("3.4.5", BumpNone)
	require.NoError(t, err)
	assert.Equal(t, "3.4.5", v)
}

func TestApplyBumpLargeComponents(t *testing.T) {
	v, err := ApplyBump("1.0.9223372036854775806", BumpPatch)
	require.NoError(t, err)
	assert.Equal(t, "1.0.9223372036854775807", v)
}

func TestApplyBumpRefusesToOverflow(t *testing.T) {
	tests := []struct {
		current string
		bump    Bump
	}{
		{"9223372036854775807.0.0", BumpMajor},
		{"1.9223372036854775807.0", BumpMinor},
		{"1.0.9223372036854775807", BumpPatch},
	}
	for _, tt := range tests {
		t.Run(tt.bump.String(), func(t *testing.T) {
			v, err := ApplyBump(tt.current, tt.bump)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrVersionExhausted)
			assert.Empty(t, v)
		})
	}

	v, err := ApplyBump("9223372036854775807.0.0", BumpPatch)
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775807.0.1", v)

	v, err = ApplyBump("1.0.9223372036854775807", BumpNone)
	require.NoError(t, err)
	assert.Equal(t, "1.0.9223372036854775807", v)
}

func TestApplyBumpRejectsMalformedVersions(t *testing.T) {
	for _, bad := range []string{"", "1.0", "one.two.three", "1.0.0.0"} {
		_, err := ApplyBump(bad, BumpPatch)
		assert.Error(t, err, bad)
	}
}

func TestVersionPolicyNoop(t *testing.T) {
	d := FieldDiff{}

	next, b, err := VersionPolicy{}.Next("1.0.0", 4, d)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", next)
	assert.Equal(t, BumpNone, b)

	next, b, err = VersionPolicy{BumpOnNoop: true}.Next("1.0.0", 4, d)
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", next)
	assert.Equal(t, BumpPatch, b)
}

func TestVersionPolicySchemaChanges(t *testing.T) {
	d := FieldDiff{Changed: []string{}, Added: []string{"owner"}, Removed: []string{"rack"}}

	next, _, err := VersionPolicy{}.Next("1.0.0", 4, d)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", next)

	p := VersionPolicy{CountSchemaChanges: true}
	assert.Equal(t, 2, p.ChangedCount(d))
	next, b, err := p.Next("1.0.0", 4, d)
	require.NoError(t, err)
	assert.Equal(t, BumpPatch, b)
	assert.Equal(t, "1.0.1", next)
}

func TestBumpString(t *testing.T) {
	assert.Equal(t, "none", BumpNone.String())
	assert.Equal(t, "patch", BumpPatch.String())
	assert.Equal(t, "minor", BumpMinor.String())
	assert.Equal(t, "major", BumpMajor.String())
}
