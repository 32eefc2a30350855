// ABOUTME: Cascade delete coordinator for objects and their location subtrees
// ABOUTME: Pre-checks existence, then deletes in discovery order and collects per-node failures
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/events"
	"github.com/harperreed/cistore/locations"
	"github.com/harperreed/cistore/models"
)

// CascadeCoordinator removes objects together with their locations.
type CascadeCoordinator struct {
	opts Options
}

// NewCascadeCoordinator creates a coordinator over opts.
func NewCascadeCoordinator(opts Options) *CascadeCoordinator {
	opts.defaults()
	return &CascadeCoordinator{opts: opts}
}

// DeleteObject removes the object and its own location, if it has one.
// Descendant locations are left untouched. The result lists the removed
// location, if any, and the object.
func (c *CascadeCoordinator) DeleteObject(ctx context.Context, id, userID int64) (res *models.CascadeResult, err error) {
	ctx, span := startSpan(ctx, "engine.DeleteObject", attribute.Int64("object.id", id))
	start := time.Now()
	defer func() {
		c.opts.Metrics.observe("delete", start, err)
		endSpan(span, err)
	}()

	obj, err := c.opts.Objects.GetObject(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	loc, err := c.opts.Locations.LocationForObject(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	res = &models.CascadeResult{
		ObjectID:         id,
		DeletedLocations: []int64{},
		DeletedObjects:   []int64{},
	}
	if loc != nil {
		err := c.opts.Locations.DeleteLocation(ctx, loc.PublicID)
		switch {
		case err == nil:
			res.DeletedLocations = append(res.DeletedLocations, loc.PublicID)
		case !ErrNotFound.Has(classify(err)):
			return nil, classify(err)
		}
	}
	if err := c.opts.Objects.DeleteObject(ctx, id); err != nil {
		return nil, classify(err)
	}
	res.DeletedObjects = append(res.DeletedObjects, id)

	c.opts.Log.Info("object deleted", zap.Int64("id", id), zap.Int64s("locations", res.DeletedLocations))
	emit(ctx, &c.opts, events.KindDeleted, obj, userID, events.TriggerAutomatic)
	return res, nil
}

// DeleteObjectWithLocationSubtree removes every location below the object's
// location, then that location, then the object. Objects bound to the
// descendant locations are kept.
func (c *CascadeCoordinator) DeleteObjectWithLocationSubtree(ctx context.Context, id, userID int64) (*models.CascadeResult, error) {
	return c.cascade(ctx, "delete_location_subtree", id, userID, false)
}

// DeleteObjectWithChildObjects removes every location below the object's
// location together with the objects they reference, then the object's own
// location, then the object.
func (c *CascadeCoordinator) DeleteObjectWithChildObjects(ctx context.Context, id, userID int64) (*models.CascadeResult, error) {
	return c.cascade(ctx, "delete_child_objects", id, userID, true)
}

func (c *CascadeCoordinator) cascade(ctx context.Context, op string, id, userID int64, withObjects bool) (res *models.CascadeResult, err error) {
	ctx, span := startSpan(ctx, "engine.Cascade",
		attribute.String("cascade.operation", op),
		attribute.Int64("object.id", id),
	)
	start := time.Now()
	defer func() {
		c.opts.Metrics.observe(op, start, err)
		endSpan(span, err)
	}()

	// Entry checks: nothing is deleted unless both the object and its
	// location exist.
	target, err := c.opts.Objects.GetObject(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	own, err := c.opts.Locations.LocationForObject(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if own == nil {
		return nil, ErrNotFound.New("object %d has no location", id)
	}
	all, err := c.opts.Locations.FindLocations(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	descendants := locations.NewTree(all).DescendantsOf(own.PublicID)

	res = &models.CascadeResult{
		ObjectID:         id,
		DeletedLocations: []int64{},
		DeletedObjects:   []int64{},
	}

	for _, loc := range descendants {
		c.deleteLocation(ctx, res, loc.PublicID)
		if withObjects && loc.ObjectID != id {
			c.deleteChildObject(ctx, res, loc.ObjectID, userID)
		}
	}

	c.deleteLocation(ctx, res, own.PublicID)
	if err := c.opts.Objects.DeleteObject(ctx, id); err != nil {
		c.fail(res, models.CollectionObjects, id, err)
	} else {
		res.DeletedObjects = append(res.DeletedObjects, id)
		emit(ctx, &c.opts, events.KindDeleted, target, userID, events.TriggerAutomatic)
	}

	c.opts.Metrics.cascaded(models.CollectionLocations, len(res.DeletedLocations))
	c.opts.Metrics.cascaded(models.CollectionObjects, len(res.DeletedObjects))
	span.SetAttributes(
		attribute.Int("cascade.deleted_locations", len(res.DeletedLocations)),
		attribute.Int("cascade.deleted_objects", len(res.DeletedObjects)),
		attribute.Int("cascade.failed", len(res.Failed)),
	)
	c.opts.Log.Info("cascade delete finished",
		zap.String("operation", op),
		zap.Int64("id", id),
		zap.Int64s("locations", res.DeletedLocations),
		zap.Int64s("objects", res.DeletedObjects),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// deleteLocation treats an already removed location as done.
func (c *CascadeCoordinator) deleteLocation(ctx context.Context, res *models.CascadeResult, id int64) {
	err := c.opts.Locations.DeleteLocation(ctx, id)
	switch {
	case err == nil:
		res.DeletedLocations = append(res.DeletedLocations, id)
	case ErrNotFound.Has(classify(err)):
	default:
		c.fail(res, models.CollectionLocations, id, err)
	}
}

// deleteChildObject treats an already removed object as done.
func (c *CascadeCoordinator) deleteChildObject(ctx context.Context, res *models.CascadeResult, id, userID int64) {
	obj, err := c.opts.Objects.GetObject(ctx, id)
	if err != nil {
		if !ErrNotFound.Has(classify(err)) {
			c.fail(res, models.CollectionObjects, id, err)
		}
		return
	}
	err = c.opts.Objects.DeleteObject(ctx, id)
	switch {
	case err == nil:
		res.DeletedObjects = append(res.DeletedObjects, id)
		emit(ctx, &c.opts, events.KindDeleted, obj, userID, events.TriggerAutomatic)
	case ErrNotFound.Has(classify(err)):
	default:
		c.fail(res, models.CollectionObjects, id, err)
	}
}

func (c *CascadeCoordinator) fail(res *models.CascadeResult, collection string, id int64, err error) {
	err = classify(err)
	c.opts.Log.Warn("cascade step failed",
		zap.String("collection", collection),
		zap.Int64("id", id),
		zap.Error(err),
	)
	res.Failed = append(res.Failed, models.FailureRecord{
		PublicID:   id,
		Collection: collection,
		Message:    err.Error(),
		Status:     Status(err),
	})
}

// DeleteMany removes objects that are not placed in the location tree. The
// whole batch is rejected with Conflict if any of them has a location.
// Deletion stops at the first failure; ids deleted so far are returned.
// Ids that do not exist are skipped.
func (c *CascadeCoordinator) DeleteMany(ctx context.Context, ids []int64, userID int64) (deleted []int64, err error) {
	ctx, span := startSpan(ctx, "engine.DeleteMany", attribute.Int("object.count", len(ids)))
	start := time.Now()
	defer func() {
		c.opts.Metrics.observe("delete_many", start, err)
		endSpan(span, err)
	}()

	for _, id := range ids {
		loc, err := c.opts.Locations.LocationForObject(ctx, id)
		if err != nil {
			return nil, classify(err)
		}
		if loc != nil {
			return nil, ErrConflict.New("object %d has location %d; remove it first", id, loc.PublicID)
		}
	}

	deleted = []int64{}
	for _, id := range ids {
		obj, err := c.opts.Objects.GetObject(ctx, id)
		if err != nil {
			if ErrNotFound.Has(classify(err)) {
				continue
			}
			return deleted, classify(err)
		}
		if err := c.opts.Objects.DeleteObject(ctx, id); err != nil {
			if ErrNotFound.Has(classify(err)) {
				continue
			}
			return deleted, classify(err)
		}
		deleted = append(deleted, id)
		emit(ctx, &c.opts, events.KindDeleted, obj, userID, events.TriggerAutomatic)
	}

	c.opts.Log.Info("objects deleted", zap.Int64s("ids", deleted))
	return deleted, nil
}
