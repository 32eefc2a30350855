// ABOUTME: Tests for the MCP tool handlers
// ABOUTME: Runs every tool against an engine backed by in-memory Badger
package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harperreed/cistore/db"
	"github.com/harperreed/cistore/engine"
	"github.com/harperreed/cistore/models"
)

type testEnv struct {
	engine  *engine.Engine
	objects *ObjectHandlers
	deletes *DeleteHandlers
	typeID  int64
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)

	store, err := db.OpenBadgerInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repo := db.NewRepository(store)
	typ := &models.Type{Name: "switch", Fields: []models.TypeField{{Name: "ports"}, {Name: "vendor"}}}
	require.NoError(t, repo.InsertType(context.Background(), typ))

	opts := engine.FromRepository(repo)
	opts.Log = log
	e := engine.New(opts)

	return &testEnv{
		engine:  e,
		objects: NewObjectHandlers(e, log),
		deletes: NewDeleteHandlers(e, log),
		typeID:  typ.PublicID,
	}
}

func (env *testEnv) insert(t *testing.T, fields ...models.Field) *models.Object {
	t.Helper()
	obj, err := env.engine.Mutations.Insert(context.Background(), models.NewObject{TypeID: env.typeID, Fields: fields}, 1)
	require.NoError(t, err)
	return obj
}

func TestNewServerRegistersTools(t *testing.T) {
	env := setupTestEnv(t)

	assert.NotPanics(t, func() {
		server := NewServer(env.engine, "test", zaptest.NewLogger(t))
		assert.NotNil(t, server)
	})
}

func TestGetObject(t *testing.T) {
	env := setupTestEnv(t)
	obj := env.insert(t, models.Field{Name: "ports", Value: 48})

	_, out, err := env.objects.GetObject(context.Background(), nil, GetObjectInput{ID: obj.PublicID})
	require.NoError(t, err)
	assert.Equal(t, obj.PublicID, out.PublicID)
	assert.Equal(t, "1.0.0", out.Version)
	require.Len(t, out.Fields, 1)
	assert.Equal(t, "ports", out.Fields[0].Name)
	assert.Empty(t, out.LastEditTime)

	_, _, err = env.objects.GetObject(context.Background(), nil, GetObjectInput{ID: 999})
	assert.True(t, engine.ErrNotFound.Has(err))
}

func TestUpdateObjects(t *testing.T) {
	env := setupTestEnv(t)
	obj := env.insert(t, models.Field{Name: "ports", Value: 48}, models.Field{Name: "vendor", Value: "acme"})

	_, out, err := env.objects.UpdateObjects(context.Background(), nil, UpdateObjectsInput{
		IDs:    []int64{obj.PublicID, 999},
		Fields: []FieldInput{{Name: "ports", Value: 24}},
		UserID: 3,
	})
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.Equal(t, "1.0.1", out.Results[0].Version)
	assert.NotEmpty(t, out.Results[0].LastEditTime)
	require.NotNil(t, out.Results[0].EditorID)
	assert.Equal(t, int64(3), *out.Results[0].EditorID)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, int64(999), out.Failed[0].PublicID)
	assert.Equal(t, 404, out.Failed[0].Status)

	_, _, err = env.objects.UpdateObjects(context.Background(), nil, UpdateObjectsInput{})
	assert.Error(t, err)
}

func TestSetObjectState(t *testing.T) {
	env := setupTestEnv(t)
	obj := env.insert(t)

	_, out, err := env.objects.SetObjectState(context.Background(), nil, SetObjectStateInput{ID: obj.PublicID, Active: false})
	require.NoError(t, err)
	assert.True(t, out.Changed)

	_, out, err = env.objects.SetObjectState(context.Background(), nil, SetObjectStateInput{ID: obj.PublicID, Active: false})
	require.NoError(t, err)
	assert.False(t, out.Changed)
}

func TestCleanType(t *testing.T) {
	env := setupTestEnv(t)
	drifted := env.insert(t, models.Field{Name: "ports", Value: 8}, models.Field{Name: "color", Value: "red"})
	env.insert(t, models.Field{Name: "vendor", Value: "acme"}, models.Field{Name: "ports", Value: 8})

	_, out, err := env.objects.CleanType(context.Background(), nil, CleanTypeInput{TypeID: env.typeID, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{drifted.PublicID}, out.Unstructured)
	assert.Nil(t, out.Result)

	_, out, err = env.objects.CleanType(context.Background(), nil, CleanTypeInput{TypeID: env.typeID})
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	require.Len(t, out.Result.Results, 1)
	names := []string{}
	for _, f := range out.Result.Results[0].Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"ports", "vendor"}, names)
}

func TestDeleteObjectModes(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	parent := env.insert(t)
	child := env.insert(t)
	parentLoc, err := env.engine.Locations.Place(ctx, parent.PublicID, models.RootParent, "dc")
	require.NoError(t, err)
	childLoc, err := env.engine.Locations.Place(ctx, child.PublicID, parentLoc.PublicID, "rack")
	require.NoError(t, err)

	_, _, err = env.deletes.DeleteObject(ctx, nil, DeleteObjectInput{ID: parent.PublicID, Mode: "everything"})
	assert.Error(t, err)

	_, desc, err := env.deletes.LocationDescendants(ctx, nil, LocationDescendantsInput{LocationID: parentLoc.PublicID})
	require.NoError(t, err)
	require.Len(t, desc.Locations, 1)
	assert.Equal(t, childLoc.PublicID, desc.Locations[0].PublicID)

	_, out, err := env.deletes.DeleteObject(ctx, nil, DeleteObjectInput{ID: parent.PublicID, Mode: ModeChildren})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{parent.PublicID, child.PublicID}, out.DeletedObjects)
	assert.ElementsMatch(t, []int64{parentLoc.PublicID, childLoc.PublicID}, out.DeletedLocations)

	placed := env.insert(t)
	placedLoc, err := env.engine.Locations.Place(ctx, placed.PublicID, models.RootParent, "lab")
	require.NoError(t, err)
	_, out, err = env.deletes.DeleteObject(ctx, nil, DeleteObjectInput{ID: placed.PublicID, Mode: ModeObject})
	require.NoError(t, err)
	assert.Equal(t, []int64{placedLoc.PublicID}, out.DeletedLocations)
	assert.Equal(t, []int64{placed.PublicID}, out.DeletedObjects)

	lone := env.insert(t)
	_, out, err = env.deletes.DeleteObject(ctx, nil, DeleteObjectInput{ID: lone.PublicID})
	require.NoError(t, err)
	assert.Equal(t, []int64{lone.PublicID}, out.DeletedObjects)
	assert.Empty(t, out.DeletedLocations)

	_, _, err = env.deletes.DeleteObject(ctx, nil, DeleteObjectInput{ID: lone.PublicID})
	assert.True(t, engine.ErrNotFound.Has(err))
}

func TestDeleteObjects(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.insert(t)
	b := env.insert(t)

	_, err := env.engine.Locations.Place(ctx, b.PublicID, models.RootParent, "")
	require.NoError(t, err)

	_, _, err = env.deletes.DeleteObjects(ctx, nil, DeleteObjectsInput{IDs: []int64{a.PublicID, b.PublicID}})
	assert.True(t, engine.ErrConflict.Has(err))

	_, out, err := env.deletes.DeleteObjects(ctx, nil, DeleteObjectsInput{IDs: []int64{a.PublicID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.PublicID}, out.Deleted)

	_, _, err = env.deletes.DeleteObjects(ctx, nil, DeleteObjectsInput{})
	assert.Error(t, err)
}

func TestFailureOutputKeepsCollection(t *testing.T) {
	out := failureToOutput(models.FailureRecord{
		PublicID:   2,
		Collection: models.CollectionLocations,
		Message:    "disk on fire",
		Status:     500,
	})
	assert.Equal(t, FailureOutput{PublicID: 2, Collection: "locations", Message: "disk on fire", Status: 500}, out)
}
