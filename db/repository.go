// ABOUTME: Typed repository over the document Store for objects, types, and locations
// ABOUTME: Handles JSON encoding and the common lookups the engine needs
package db

import (
	"context"
	"encoding/json"

	"github.com/harperreed/cistore/models"
)

// Repository reads and writes the three CMDB collections.
type Repository struct {
	store Store
}

// NewRepository creates a repository backed by store.
func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Store returns the underlying document store.
func (r *Repository) Store() Store {
	return r.store
}

func getDoc[T any](ctx context.Context, s Store, collection string, id int64) (*T, error) {
	raw, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, Error.New("decode %s %d: %v", collection, id, err)
	}
	return &out, nil
}

func findDocs[T any](ctx context.Context, s Store, collection string, filter Filter) ([]T, error) {
	raws, err := s.FindAll(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, Error.New("decode %s: %v", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return data, nil
}

// GetObject retrieves an object by public id.
func (r *Repository) GetObject(ctx context.Context, id int64) (*models.Object, error) {
	return getDoc[models.Object](ctx, r.store, models.CollectionObjects, id)
}

// FindObjects lists objects matching filter, ordered by public id.
func (r *Repository) FindObjects(ctx context.Context, filter Filter) ([]models.Object, error) {
	return findDocs[models.Object](ctx, r.store, models.CollectionObjects, filter)
}

// ObjectsOfType lists every object whose type_id is typeID.
func (r *Repository) ObjectsOfType(ctx context.Context, typeID int64) ([]models.Object, error) {
	return r.FindObjects(ctx, Filter{"type_id": typeID})
}

// InsertObject stores a new object under its public id.
func (r *Repository) InsertObject(ctx context.Context, obj *models.Object) error {
	data, err := encode(obj)
	if err != nil {
		return err
	}
	return r.store.Insert(ctx, models.CollectionObjects, obj.PublicID, data)
}

// ReplaceObject overwrites the stored object with the same public id.
func (r *Repository) ReplaceObject(ctx context.Context, obj *models.Object) error {
	data, err := encode(obj)
	if err != nil {
		return err
	}
	return r.store.Replace(ctx, models.CollectionObjects, obj.PublicID, data)
}

// DeleteObject removes an object.
func (r *Repository) DeleteObject(ctx context.Context, id int64) error {
	return r.store.Delete(ctx, models.CollectionObjects, id)
}

// NextObjectID allocates a fresh object public id.
func (r *Repository) NextObjectID(ctx context.Context) (int64, error) {
	return r.store.NextID(ctx, models.CollectionObjects)
}

// GetType retrieves a type by public id.
func (r *Repository) GetType(ctx context.Context, id int64) (*models.Type, error) {
	return getDoc[models.Type](ctx, r.store, models.CollectionTypes, id)
}

// FindTypes lists types matching filter.
func (r *Repository) FindTypes(ctx context.Context, filter Filter) ([]models.Type, error) {
	return findDocs[models.Type](ctx, r.store, models.CollectionTypes, filter)
}

// InsertType stores a type, allocating a public id when it has none.
func (r *Repository) InsertType(ctx context.Context, t *models.Type) error {
	if t.PublicID == 0 {
		id, err := r.store.NextID(ctx, models.CollectionTypes)
		if err != nil {
			return err
		}
		t.PublicID = id
	}
	data, err := encode(t)
	if err != nil {
		return err
	}
	return r.store.Insert(ctx, models.CollectionTypes, t.PublicID, data)
}

// GetLocation retrieves a location by public id.
func (r *Repository) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	return getDoc[models.Location](ctx, r.store, models.CollectionLocations, id)
}

// FindLocations lists locations matching filter.
func (r *Repository) FindLocations(ctx context.Context, filter Filter) ([]models.Location, error) {
	return findDocs[models.Location](ctx, r.store, models.CollectionLocations, filter)
}

// LocationForObject returns the location placing objectID, or nil when the
// object has none.
func (r *Repository) LocationForObject(ctx context.Context, objectID int64) (*models.Location, error) {
	locs, err := r.FindLocations(ctx, Filter{"object_id": objectID})
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, nil
	}
	return &locs[0], nil
}

// InsertLocation stores a location, allocating a public id when it has none.
func (r *Repository) InsertLocation(ctx context.Context, loc *models.Location) error {
	if loc.PublicID == 0 {
		id, err := r.store.NextID(ctx, models.CollectionLocations)
		if err != nil {
			return err
		}
		loc.PublicID = id
	}
	data, err := encode(loc)
	if err != nil {
		return err
	}
	return r.store.Insert(ctx, models.CollectionLocations, loc.PublicID, data)
}

// DeleteLocation removes a location.
func (r *Repository) DeleteLocation(ctx context.Context, id int64) error {
	return r.store.Delete(ctx, models.CollectionLocations, id)
}
