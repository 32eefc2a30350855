// ABOUTME: Placement of objects into the location hierarchy and subtree reads
// ABOUTME: Enforces one location per object and an existing parent
package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/locations"
	"github.com/harperreed/cistore/models"
)

// LocationService places objects in the tree and reads it back.
type LocationService struct {
	opts Options
}

// NewLocationService creates a location service over opts.
func NewLocationService(opts Options) *LocationService {
	opts.defaults()
	return &LocationService{opts: opts}
}

// Place creates the location of objectID under parent (models.RootParent for
// a top-level node).
func (s *LocationService) Place(ctx context.Context, objectID, parent int64, name string) (loc *models.Location, err error) {
	ctx, span := startSpan(ctx, "engine.Place",
		attribute.Int64("object.id", objectID),
		attribute.Int64("location.parent", parent),
	)
	defer func() { endSpan(span, err) }()

	if _, err := s.opts.Objects.GetObject(ctx, objectID); err != nil {
		return nil, classify(err)
	}
	existing, err := s.opts.Locations.LocationForObject(ctx, objectID)
	if err != nil {
		return nil, classify(err)
	}
	if existing != nil {
		return nil, ErrConflict.New("object %d already has location %d", objectID, existing.PublicID)
	}

	kind := models.LocationTypeObject
	if parent == models.RootParent {
		kind = models.LocationTypeRoot
	} else if _, err := s.opts.Locations.GetLocation(ctx, parent); err != nil {
		return nil, classify(err)
	}

	loc = &models.Location{
		ObjectID: objectID,
		Parent:   parent,
		Name:     name,
		Type:     kind,
	}
	if err := s.opts.Locations.InsertLocation(ctx, loc); err != nil {
		return nil, classify(err)
	}
	s.opts.Log.Info("object placed",
		zap.Int64("object_id", objectID),
		zap.Int64("location_id", loc.PublicID),
		zap.Int64("parent", parent),
	)
	return loc, nil
}

// Get returns one location.
func (s *LocationService) Get(ctx context.Context, id int64) (*models.Location, error) {
	loc, err := s.opts.Locations.GetLocation(ctx, id)
	return loc, classify(err)
}

// ForObject returns the location of objectID, or NotFound.
func (s *LocationService) ForObject(ctx context.Context, objectID int64) (*models.Location, error) {
	loc, err := s.opts.Locations.LocationForObject(ctx, objectID)
	if err != nil {
		return nil, classify(err)
	}
	if loc == nil {
		return nil, ErrNotFound.New("object %d has no location", objectID)
	}
	return loc, nil
}

// Tree loads every location into an index.
func (s *LocationService) Tree(ctx context.Context) (*locations.Tree, error) {
	all, err := s.opts.Locations.FindLocations(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	return locations.NewTree(all), nil
}

// Descendants returns every location below id. The location itself must exist.
func (s *LocationService) Descendants(ctx context.Context, id int64) (out []models.Location, err error) {
	ctx, span := startSpan(ctx, "engine.Descendants", attribute.Int64("location.id", id))
	defer func() { endSpan(span, err) }()

	if _, err := s.opts.Locations.GetLocation(ctx, id); err != nil {
		return nil, classify(err)
	}
	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	out = tree.DescendantsOf(id)
	if out == nil {
		out = []models.Location{}
	}
	return out, nil
}
