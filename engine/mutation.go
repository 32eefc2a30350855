// ABOUTME: Object mutation coordinator: insert, patch, state toggles, and type reconciliation
// ABOUTME: Diffs each change against the stored object and versions it before persisting
package engine

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/events"
	"github.com/harperreed/cistore/models"
	"github.com/harperreed/cistore/objects"
)

// MutationCoordinator applies changes to stored objects.
type MutationCoordinator struct {
	opts Options
}

// NewMutationCoordinator creates a coordinator over opts.
func NewMutationCoordinator(opts Options) *MutationCoordinator {
	opts.defaults()
	return &MutationCoordinator{opts: opts}
}

// reconciler produces the new object from a copy of the stored one.
type reconciler func(stored *models.Object, typ *models.Type) (*models.Object, error)

// Get returns the stored object.
func (c *MutationCoordinator) Get(ctx context.Context, id int64) (obj *models.Object, err error) {
	ctx, span := startSpan(ctx, "engine.Get", attribute.Int64("object.id", id))
	defer func() { endSpan(span, err) }()

	obj, err = c.opts.Objects.GetObject(ctx, id)
	return obj, classify(err)
}

// Insert creates a new object at version 1.0.0.
func (c *MutationCoordinator) Insert(ctx context.Context, in models.NewObject, userID int64) (obj *models.Object, err error) {
	ctx, span := startSpan(ctx, "engine.Insert", attribute.Int64("type.id", in.TypeID))
	start := time.Now()
	defer func() {
		c.opts.Metrics.observe("insert", start, err)
		endSpan(span, err)
	}()

	if err := validateFields(in.Fields); err != nil {
		return nil, err
	}
	if _, err := c.opts.Types.GetType(ctx, in.TypeID); err != nil {
		return nil, classify(err)
	}

	var id int64
	if in.PublicID != nil {
		id = *in.PublicID
		if id <= 0 {
			return nil, ErrValidation.New("public_id must be positive")
		}
		_, err := c.opts.Objects.GetObject(ctx, id)
		if err == nil {
			return nil, ErrConflict.New("object %d already exists", id)
		}
		if !ErrNotFound.Has(classify(err)) {
			return nil, classify(err)
		}
	} else {
		id, err = c.opts.Objects.NextObjectID(ctx)
		if err != nil {
			return nil, classify(err)
		}
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	fields := in.Fields
	if fields == nil {
		fields = []models.Field{}
	}

	obj = &models.Object{
		PublicID:     id,
		TypeID:       in.TypeID,
		Version:      models.InitialVersion,
		Active:       active,
		AuthorID:     userID,
		CreationTime: c.opts.Now().UTC(),
		Views:        0,
		Fields:       fields,
	}
	if err := c.opts.Objects.InsertObject(ctx, obj); err != nil {
		return nil, classify(err)
	}

	c.opts.Log.Info("object inserted", zap.Int64("id", id), zap.Int64("type_id", in.TypeID))
	emit(ctx, &c.opts, events.KindAdded, obj, userID, events.TriggerAutomatic)
	return obj, nil
}

// Update applies patch to one object. Nothing is written when it fails.
func (c *MutationCoordinator) Update(ctx context.Context, id int64, patch models.ObjectPatch, userID int64) (obj *models.Object, err error) {
	ctx, span := startSpan(ctx, "engine.Update", attribute.Int64("object.id", id))
	start := time.Now()
	defer func() {
		c.opts.Metrics.observe("update", start, err)
		endSpan(span, err)
	}()

	obj, _, err = c.apply(ctx, id, userID, patchReconciler(patch))
	return obj, err
}

// UpdateMany applies patch to every id independently. Every id ends up in
// exactly one of Results or Failed.
func (c *MutationCoordinator) UpdateMany(ctx context.Context, ids []int64, patch models.ObjectPatch, userID int64) *models.UpdateResult {
	ctx, span := startSpan(ctx, "engine.UpdateMany", attribute.Int("object.count", len(ids)))
	defer span.End()

	res := c.batch(ctx, "update", ids, userID, patchReconciler(patch))
	span.SetAttributes(attribute.Int("failed.count", len(res.Failed)))
	return res
}

func (c *MutationCoordinator) batch(ctx context.Context, op string, ids []int64, userID int64, fn reconciler) *models.UpdateResult {
	res := &models.UpdateResult{
		Results: []models.Object{},
		Failed:  []models.FailureRecord{},
	}
	for _, id := range ids {
		start := time.Now()
		obj, partial, err := c.apply(ctx, id, userID, fn)
		c.opts.Metrics.observe(op, start, err)
		if err != nil {
			c.opts.Log.Warn("batch item failed",
				zap.String("operation", op),
				zap.Int64("id", id),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, models.FailureRecord{
				PublicID:   id,
				Collection: models.CollectionObjects,
				Message:    err.Error(),
				Status:     Status(err),
				Object:     partial,
			})
			continue
		}
		res.Results = append(res.Results, *obj)
	}
	return res
}

// apply loads the object, reconciles it, versions it, and persists it. On
// failure it returns whatever partial object was built so far.
func (c *MutationCoordinator) apply(ctx context.Context, id, userID int64, fn reconciler) (*models.Object, *models.Object, error) {
	stored, err := c.opts.Objects.GetObject(ctx, id)
	if err != nil {
		return nil, nil, classify(err)
	}
	typ, err := c.opts.Types.GetType(ctx, stored.TypeID)
	if err != nil {
		return nil, stored, classify(err)
	}

	merged, err := fn(stored.Clone(), typ)
	if err != nil {
		return nil, stored, classify(err)
	}
	if merged.TypeID != stored.TypeID {
		if _, err := c.opts.Types.GetType(ctx, merged.TypeID); err != nil {
			return nil, merged, classify(err)
		}
	}

	// Immutable attributes always come from the stored record.
	merged.PublicID = stored.PublicID
	merged.CreationTime = stored.CreationTime
	merged.AuthorID = stored.AuthorID
	merged.Views = stored.Views

	diff := objects.Diff(stored.Fields, merged.Fields)
	next, bump, err := c.opts.Policy.Next(merged.Version, len(merged.Fields), diff)
	if err != nil {
		return nil, merged, ErrValidation.Wrap(err)
	}
	merged.Version = next

	now := c.opts.Now().UTC()
	merged.LastEditTime = &now
	editor := userID
	merged.EditorID = &editor

	if err := c.opts.Objects.ReplaceObject(ctx, merged); err != nil {
		return nil, merged, classify(err)
	}

	c.opts.Metrics.bump(bump.String())
	c.opts.Log.Debug("object updated",
		zap.Int64("id", id),
		zap.String("version", next),
		zap.Stringer("bump", bump),
		zap.Strings("changed", diff.Changed),
	)
	emit(ctx, &c.opts, events.KindUpdated, merged, userID, events.TriggerAutomatic)
	return merged, nil, nil
}

// patchReconciler merges an ObjectPatch onto the stored object.
func patchReconciler(patch models.ObjectPatch) reconciler {
	return func(obj *models.Object, _ *models.Type) (*models.Object, error) {
		if err := validateFields(patch.Fields); err != nil {
			return nil, err
		}
		if patch.TypeID != nil {
			obj.TypeID = *patch.TypeID
		}
		if patch.Active != nil {
			obj.Active = *patch.Active
		}
		if patch.Version != nil {
			if _, err := objects.ParseVersion(*patch.Version); err != nil {
				return nil, ErrValidation.Wrap(err)
			}
			obj.Version = *patch.Version
		}
		obj.Fields = mergeFields(obj.Fields, patch.Fields)
		return obj, nil
	}
}

// mergeFields keeps the stored order, takes patched values by name, and
// appends names the stored object did not have.
func mergeFields(stored, patch []models.Field) []models.Field {
	byName := make(map[string]interface{}, len(patch))
	for _, f := range patch {
		byName[f.Name] = f.Value
	}

	out := make([]models.Field, 0, len(stored)+len(patch))
	seen := make(map[string]bool, len(stored))
	for _, f := range stored {
		seen[f.Name] = true
		if v, ok := byName[f.Name]; ok {
			f.Value = v
		}
		out = append(out, f)
	}
	for _, f := range patch {
		if !seen[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

// cleanReconciler prunes fields the type does not declare and adds declared
// fields the object lacks, using the type's default value.
func cleanReconciler(obj *models.Object, typ *models.Type) (*models.Object, error) {
	declared := make(map[string]bool, len(typ.Fields))
	for _, f := range typ.Fields {
		declared[f.Name] = true
	}

	present := make(map[string]bool, len(obj.Fields))
	fields := make([]models.Field, 0, len(typ.Fields))
	for _, f := range obj.Fields {
		if declared[f.Name] {
			present[f.Name] = true
			fields = append(fields, f)
		}
	}
	for _, f := range typ.Fields {
		if !present[f.Name] {
			fields = append(fields, models.Field{Name: f.Name, Value: f.Value})
		}
	}
	obj.Fields = fields
	return obj, nil
}

func validateFields(fields []models.Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return ErrValidation.New("field name must not be empty")
		}
		if seen[f.Name] {
			return ErrValidation.New("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// ParseActiveState decodes a state toggle body, which must be a JSON boolean.
func ParseActiveState(raw []byte) (bool, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, ErrValidation.New("state must be a boolean: %v", err)
	}
	b, ok := v.(bool)
	if !ok {
		return false, ErrValidation.New("state must be a boolean, got %T", v)
	}
	return b, nil
}

// GetState returns the object's active flag.
func (c *MutationCoordinator) GetState(ctx context.Context, id int64) (bool, error) {
	obj, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return obj.Active, nil
}

// SetActive sets the object's active flag. It reports false and writes
// nothing when the flag already has that value.
func (c *MutationCoordinator) SetActive(ctx context.Context, id int64, active bool, userID int64) (changed bool, err error) {
	ctx, span := startSpan(ctx, "engine.SetActive",
		attribute.Int64("object.id", id),
		attribute.Bool("object.active", active),
	)
	start := time.Now()
	defer func() {
		c.opts.Metrics.observe("set_active", start, err)
		endSpan(span, err)
	}()

	obj, err := c.opts.Objects.GetObject(ctx, id)
	if err != nil {
		return false, classify(err)
	}
	if obj.Active == active {
		return false, nil
	}

	obj.Active = active
	now := c.opts.Now().UTC()
	obj.LastEditTime = &now
	editor := userID
	obj.EditorID = &editor
	if err := c.opts.Objects.ReplaceObject(ctx, obj); err != nil {
		return false, classify(err)
	}

	emit(ctx, &c.opts, events.KindUpdated, obj, userID, events.TriggerAutomatic)
	return true, nil
}

// UnstructuredObjects lists objects of typeID whose field names differ from
// the names the type declares.
func (c *MutationCoordinator) UnstructuredObjects(ctx context.Context, typeID int64) (out []models.Object, err error) {
	ctx, span := startSpan(ctx, "engine.UnstructuredObjects", attribute.Int64("type.id", typeID))
	defer func() { endSpan(span, err) }()

	typ, err := c.opts.Types.GetType(ctx, typeID)
	if err != nil {
		return nil, classify(err)
	}
	objs, err := c.opts.Objects.ObjectsOfType(ctx, typeID)
	if err != nil {
		return nil, classify(err)
	}

	want := sortedNames(typ.FieldNames())
	out = []models.Object{}
	for i := range objs {
		if !equalNames(want, sortedNames(objs[i].FieldNames())) {
			out = append(out, objs[i])
		}
	}
	return out, nil
}

// CleanType reconciles every unstructured object of typeID to the type's
// declared fields through the batch update path.
func (c *MutationCoordinator) CleanType(ctx context.Context, typeID int64, userID int64) (res *models.UpdateResult, err error) {
	ctx, span := startSpan(ctx, "engine.CleanType", attribute.Int64("type.id", typeID))
	defer func() { endSpan(span, err) }()

	objs, err := c.UnstructuredObjects(ctx, typeID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(objs))
	for i, o := range objs {
		ids[i] = o.PublicID
	}

	res = c.batch(ctx, "clean", ids, userID, cleanReconciler)
	c.opts.Log.Info("type cleaned",
		zap.Int64("type_id", typeID),
		zap.Int("updated", len(res.Results)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// RunManual asks downstream schedulers to run jobs for the object now.
func (c *MutationCoordinator) RunManual(ctx context.Context, id int64, userID int64) (err error) {
	ctx, span := startSpan(ctx, "engine.RunManual", attribute.Int64("object.id", id))
	defer func() { endSpan(span, err) }()

	obj, err := c.opts.Objects.GetObject(ctx, id)
	if err != nil {
		return classify(err)
	}
	emit(ctx, &c.opts, events.KindRunManual, obj, userID, events.TriggerManual)
	return nil
}

func sortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
