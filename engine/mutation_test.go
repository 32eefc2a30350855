// ABOUTME: Tests for the object mutation coordinator
// ABOUTME: Covers versioning on update, batch partitioning, state toggles, and type cleaning
package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/cistore/events"
	"github.com/harperreed/cistore/models"
	"github.com/harperreed/cistore/objects"
)

func TestInsertDefaults(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})

	obj := f.insert(t, fourFields())

	assert.Equal(t, int64(1), obj.PublicID)
	assert.Equal(t, "1.0.0", obj.Version)
	assert.True(t, obj.Active)
	assert.Equal(t, int64(1), obj.AuthorID)
	assert.Equal(t, fixedNow, obj.CreationTime)
	assert.Nil(t, obj.LastEditTime)
	assert.Zero(t, obj.Views)

	added := f.events.OfKind(events.KindAdded)
	require.Len(t, added, 1)
	assert.Equal(t, obj.PublicID, added[0].ObjectID)
	assert.Equal(t, events.TriggerAutomatic, added[0].Trigger)

	second := f.insert(t, fourFields())
	assert.Greater(t, second.PublicID, obj.PublicID)
}

func TestInsertValidation(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	ctx := context.Background()

	_, err := f.engine.Mutations.Insert(ctx, models.NewObject{TypeID: 999}, 1)
	assert.True(t, ErrNotFound.Has(err))

	_, err = f.engine.Mutations.Insert(ctx, models.NewObject{
		TypeID: f.typ.PublicID,
		Fields: []models.Field{{Name: "a", Value: 1}, {Name: "a", Value: 2}},
	}, 1)
	assert.True(t, ErrValidation.Has(err))

	id := int64(50)
	inactive := false
	obj, err := f.engine.Mutations.Insert(ctx, models.NewObject{PublicID: &id, TypeID: f.typ.PublicID, Active: &inactive}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), obj.PublicID)
	assert.False(t, obj.Active)
	assert.NotNil(t, obj.Fields)

	_, err = f.engine.Mutations.Insert(ctx, models.NewObject{PublicID: &id, TypeID: f.typ.PublicID}, 1)
	assert.True(t, ErrConflict.Has(err))

	next := f.insert(t, nil)
	assert.Equal(t, int64(51), next.PublicID)
}

func TestUpdateVersionBumps(t *testing.T) {
	tests := []struct {
		name    string
		changes []models.Field
		want    string
	}{
		{"one field", []models.Field{{Name: "ip", Value: "10.0.0.2"}}, "1.0.1"},
		{"two of four", []models.Field{{Name: "ip", Value: "10.0.0.2"}, {Name: "rack", Value: "r2"}}, "1.0.1"},
		{"three of four", []models.Field{
			{Name: "ip", Value: "10.0.0.2"}, {Name: "rack", Value: "r2"}, {Name: "os", Value: "bsd"},
		}, "1.1.0"},
		{"all four", []models.Field{
			{Name: "hostname", Value: "db02"}, {Name: "ip", Value: "10.0.0.2"},
			{Name: "rack", Value: "r2"}, {Name: "os", Value: "bsd"},
		}, "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, objects.VersionPolicy{})
			obj := f.insert(t, fourFields())

			updated, err := f.engine.Mutations.Update(context.Background(), obj.PublicID,
				models.ObjectPatch{Fields: tt.changes}, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, updated.Version)

			stored, err := f.repo.GetObject(context.Background(), obj.PublicID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Version)
		})
	}
}

func TestUpdateNoopKeepsVersionByDefault(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())

	updated, err := f.engine.Mutations.Update(context.Background(), obj.PublicID,
		models.ObjectPatch{Fields: fourFields()}, 2)
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", updated.Version)
	require.NotNil(t, updated.EditorID)
	assert.Equal(t, int64(2), *updated.EditorID)
	require.NotNil(t, updated.LastEditTime)
	assert.Equal(t, fixedNow, *updated.LastEditTime)
	assert.Len(t, f.events.OfKind(events.KindUpdated), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.VersionBumps.WithLabelValues("none")))
}

func TestUpdateNoopBumpsPatchWhenConfigured(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{BumpOnNoop: true})
	obj := f.insert(t, fourFields())

	updated, err := f.engine.Mutations.Update(context.Background(), obj.PublicID,
		models.ObjectPatch{Fields: fourFields()}, 2)
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", updated.Version)
}

func TestUpdatePreservesImmutableAttributes(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())
	inactive := false

	updated, err := f.engine.Mutations.Update(context.Background(), obj.PublicID, models.ObjectPatch{
		Active: &inactive,
		Fields: []models.Field{{Name: "ip", Value: "10.0.0.9"}},
	}, 7)
	require.NoError(t, err)

	assert.Equal(t, obj.PublicID, updated.PublicID)
	assert.Equal(t, obj.AuthorID, updated.AuthorID)
	assert.Equal(t, obj.CreationTime, updated.CreationTime)
	assert.False(t, updated.Active)
	assert.Equal(t, []string{"hostname", "ip", "os", "rack"}, updated.FieldNames())
	assert.Equal(t, "10.0.0.9", updated.Fields[1].Value)
}

func TestUpdateAppendsPatchOnlyFields(t *testing.T) {
	patch := models.ObjectPatch{Fields: []models.Field{{Name: "owner", Value: "ops"}}}

	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())
	updated, err := f.engine.Mutations.Update(context.Background(), obj.PublicID, patch, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"hostname", "ip", "os", "rack", "owner"}, updated.FieldNames())
	assert.Equal(t, "1.0.0", updated.Version)

	f = newFixture(t, objects.VersionPolicy{CountSchemaChanges: true})
	obj = f.insert(t, fourFields())
	updated, err = f.engine.Mutations.Update(context.Background(), obj.PublicID, patch, 2)
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", updated.Version)
}

func TestUpdateSuppliedVersion(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())
	ctx := context.Background()

	v := "3.2.0"
	updated, err := f.engine.Mutations.Update(ctx, obj.PublicID, models.ObjectPatch{
		Version: &v,
		Fields:  []models.Field{{Name: "ip", Value: "10.0.0.2"}},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, "3.2.1", updated.Version)

	bad := "three"
	_, err = f.engine.Mutations.Update(ctx, obj.PublicID, models.ObjectPatch{Version: &bad}, 2)
	assert.True(t, ErrValidation.Has(err))

	stored, err := f.repo.GetObject(ctx, obj.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "3.2.1", stored.Version)
}

func TestUpdateExhaustedVersionWritesNothing(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())
	ctx := context.Background()

	maxed := "1.0.9223372036854775807"
	_, err := f.engine.Mutations.Update(ctx, obj.PublicID, models.ObjectPatch{
		Version: &maxed,
		Fields:  []models.Field{{Name: "ip", Value: "10.0.0.9"}},
	}, 2)
	require.Error(t, err)
	assert.True(t, ErrValidation.Has(err))
	assert.ErrorIs(t, err, objects.ErrVersionExhausted)

	stored, err := f.repo.GetObject(ctx, obj.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", stored.Version)
	assert.Equal(t, "10.0.0.1", stored.Fields[1].Value)
	assert.Empty(t, f.events.OfKind(events.KindUpdated))
}

func TestUpdateNotFound(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})

	_, err := f.engine.Mutations.Update(context.Background(), 999, models.ObjectPatch{}, 1)
	assert.True(t, ErrNotFound.Has(err))
	assert.Empty(t, f.events.OfKind(events.KindUpdated))
}

func TestUpdateRejectsUnknownTargetType(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())
	typeID := int64(404)

	_, err := f.engine.Mutations.Update(context.Background(), obj.PublicID, models.ObjectPatch{TypeID: &typeID}, 1)
	assert.True(t, ErrNotFound.Has(err))
}

func TestUpdateManyPartitionsIDs(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())
	patch := models.ObjectPatch{Fields: []models.Field{{Name: "rack", Value: "r9"}}}

	res := f.engine.Mutations.UpdateMany(context.Background(), []int64{obj.PublicID, 999}, patch, 3)

	require.Len(t, res.Results, 1)
	assert.Equal(t, obj.PublicID, res.Results[0].PublicID)
	assert.Equal(t, "1.0.1", res.Results[0].Version)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, int64(999), res.Failed[0].PublicID)
	assert.Equal(t, http.StatusNotFound, res.Failed[0].Status)
	assert.Nil(t, res.Failed[0].Object)
}

func TestUpdateManyContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	a := f.insert(t, fourFields())
	b := f.insert(t, fourFields())
	bad := "x.y.z"

	res := f.engine.Mutations.UpdateMany(context.Background(), []int64{998, a.PublicID, 999, b.PublicID},
		models.ObjectPatch{Fields: []models.Field{{Name: "os", Value: "bsd"}}}, 3)
	assert.Len(t, res.Results, 2)
	assert.Len(t, res.Failed, 2)

	res = f.engine.Mutations.UpdateMany(context.Background(), []int64{a.PublicID},
		models.ObjectPatch{Version: &bad}, 3)
	assert.Empty(t, res.Results)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, http.StatusBadRequest, res.Failed[0].Status)
	require.NotNil(t, res.Failed[0].Object)
	assert.Equal(t, a.PublicID, res.Failed[0].Object.PublicID)
}

type gate map[int64]bool

func (g gate) SchedulingActive(_ context.Context, id int64) bool { return g[id] }

func TestUpdatedEventCombinesSchedulingGate(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	a := f.insert(t, fourFields())
	b := f.insert(t, fourFields())

	opts := FromRepository(f.repo)
	rec := &events.Recorder{}
	opts.Events = rec
	opts.Gate = gate{a.PublicID: true}
	m := NewMutationCoordinator(opts)

	patch := models.ObjectPatch{Fields: []models.Field{{Name: "ip", Value: "1.1.1.1"}}}
	res := m.UpdateMany(context.Background(), []int64{a.PublicID, b.PublicID}, patch, 1)
	require.Empty(t, res.Failed)

	got := rec.OfKind(events.KindUpdated)
	require.Len(t, got, 2)
	assert.True(t, got[0].Active)
	assert.False(t, got[1].Active)
}

func TestSetActive(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())
	ctx := context.Background()

	changed, err := f.engine.Mutations.SetActive(ctx, obj.PublicID, true, 2)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, f.events.OfKind(events.KindUpdated))

	changed, err = f.engine.Mutations.SetActive(ctx, obj.PublicID, false, 2)
	require.NoError(t, err)
	assert.True(t, changed)

	active, err := f.engine.Mutations.GetState(ctx, obj.PublicID)
	require.NoError(t, err)
	assert.False(t, active)

	updated := f.events.OfKind(events.KindUpdated)
	require.Len(t, updated, 1)
	assert.False(t, updated[0].Active)

	stored, err := f.repo.GetObject(ctx, obj.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", stored.Version)

	_, err = f.engine.Mutations.SetActive(ctx, 999, true, 2)
	assert.True(t, ErrNotFound.Has(err))
}

func TestParseActiveState(t *testing.T) {
	v, err := ParseActiveState([]byte("true"))
	require.NoError(t, err)
	assert.True(t, v)

	v, err = ParseActiveState([]byte(" false "))
	require.NoError(t, err)
	assert.False(t, v)

	for _, bad := range []string{`"true"`, `1`, `null`, `{}`, ``} {
		_, err := ParseActiveState([]byte(bad))
		assert.True(t, ErrValidation.Has(err), bad)
	}
}

func TestUnstructuredAndCleanType(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	ctx := context.Background()

	good := f.insert(t, fourFields())
	drifted := f.insert(t, []models.Field{
		{Name: "hostname", Value: "web01"},
		{Name: "legacy", Value: "x"},
	})

	unstructured, err := f.engine.Mutations.UnstructuredObjects(ctx, f.typ.PublicID)
	require.NoError(t, err)
	require.Len(t, unstructured, 1)
	assert.Equal(t, drifted.PublicID, unstructured[0].PublicID)

	res, err := f.engine.Mutations.CleanType(ctx, f.typ.PublicID, 5)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Empty(t, res.Failed)

	cleaned := res.Results[0]
	assert.Equal(t, []string{"hostname", "ip", "os", "rack"}, cleaned.FieldNames())
	assert.Equal(t, "web01", cleaned.Fields[0].Value)
	assert.Equal(t, "linux", cleaned.Fields[2].Value)
	assert.Equal(t, "1.0.0", cleaned.Version)

	stored, err := f.repo.GetObject(ctx, good.PublicID)
	require.NoError(t, err)
	assert.Nil(t, stored.EditorID)

	unstructured, err = f.engine.Mutations.UnstructuredObjects(ctx, f.typ.PublicID)
	require.NoError(t, err)
	assert.Empty(t, unstructured)

	_, err = f.engine.Mutations.CleanType(ctx, 999, 5)
	assert.True(t, ErrNotFound.Has(err))
}

func TestCleanTypeCountsSchemaChangesWhenConfigured(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{CountSchemaChanges: true})
	f.insert(t, []models.Field{{Name: "hostname", Value: "web01"}, {Name: "legacy", Value: "x"}})

	res, err := f.engine.Mutations.CleanType(context.Background(), f.typ.PublicID, 5)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	// Three added and one removed out of four fields.
	assert.Equal(t, "2.0.0", res.Results[0].Version)
}

func TestRunManual(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())

	require.NoError(t, f.engine.Mutations.RunManual(context.Background(), obj.PublicID, 4))

	runs := f.events.OfKind(events.KindRunManual)
	require.Len(t, runs, 1)
	assert.Equal(t, events.TriggerManual, runs[0].Trigger)
	assert.Equal(t, int64(4), runs[0].UserID)

	err := f.engine.Mutations.RunManual(context.Background(), 999, 4)
	assert.True(t, ErrNotFound.Has(err))
}

func TestGet(t *testing.T) {
	f := newFixture(t, objects.VersionPolicy{})
	obj := f.insert(t, fourFields())

	got, err := f.engine.Mutations.Get(context.Background(), obj.PublicID)
	require.NoError(t, err)
	assert.Equal(t, obj.Fields, got.Fields)

	_, err = f.engine.Mutations.Get(context.Background(), 999)
	assert.True(t, ErrNotFound.Has(err))
}
