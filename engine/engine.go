// ABOUTME: Wiring for the object mutation, location, and cascade delete coordinators
// ABOUTME: Declares the collaborator interfaces the coordinators depend on
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/db"
	"github.com/harperreed/cistore/events"
	"github.com/harperreed/cistore/models"
	"github.com/harperreed/cistore/objects"
)

var tracer = otel.Tracer("cistore.engine")

// ObjectStore persists objects.
type ObjectStore interface {
	GetObject(ctx context.Context, id int64) (*models.Object, error)
	ObjectsOfType(ctx context.Context, typeID int64) ([]models.Object, error)
	InsertObject(ctx context.Context, obj *models.Object) error
	ReplaceObject(ctx context.Context, obj *models.Object) error
	DeleteObject(ctx context.Context, id int64) error
	NextObjectID(ctx context.Context) (int64, error)
}

// LocationStore persists locations.
type LocationStore interface {
	GetLocation(ctx context.Context, id int64) (*models.Location, error)
	FindLocations(ctx context.Context, filter db.Filter) ([]models.Location, error)
	LocationForObject(ctx context.Context, objectID int64) (*models.Location, error)
	InsertLocation(ctx context.Context, loc *models.Location) error
	DeleteLocation(ctx context.Context, id int64) error
}

// TypeStore reads type definitions.
type TypeStore interface {
	GetType(ctx context.Context, id int64) (*models.Type, error)
}

// SchedulingGate reports whether downstream schedulers consider an object
// active, independent of the object's own flag.
type SchedulingGate interface {
	SchedulingActive(ctx context.Context, objectID int64) bool
}

// AlwaysActive is the gate used when no scheduler is attached.
type AlwaysActive struct{}

func (AlwaysActive) SchedulingActive(context.Context, int64) bool { return true }

// Options carries the collaborators shared by all coordinators.
type Options struct {
	Objects   ObjectStore
	Locations LocationStore
	Types     TypeStore
	Events    events.Emitter
	Gate      SchedulingGate
	Policy    objects.VersionPolicy
	Log       *zap.Logger
	Metrics   *Metrics
	Now       func() time.Time
}

// FromRepository fills the store collaborators from one repository.
func FromRepository(repo *db.Repository) Options {
	return Options{Objects: repo, Locations: repo, Types: repo}
}

func (o *Options) defaults() {
	if o.Events == nil {
		o.Events = events.Nop{}
	}
	if o.Gate == nil {
		o.Gate = AlwaysActive{}
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Engine bundles the coordinators built from one set of options.
type Engine struct {
	Mutations *MutationCoordinator
	Cascades  *CascadeCoordinator
	Locations *LocationService
}

// New builds every coordinator from opts.
func New(opts Options) *Engine {
	opts.defaults()
	return &Engine{
		Mutations: NewMutationCoordinator(opts),
		Cascades:  NewCascadeCoordinator(opts),
		Locations: NewLocationService(opts),
	}
}

// emit publishes a lifecycle event for obj. The active flag combines the
// object's own state with the scheduling gate.
func emit(ctx context.Context, o *Options, kind events.Kind, obj *models.Object, userID int64, trigger events.Trigger) {
	active := obj.Active && o.Gate.SchedulingActive(ctx, obj.PublicID)
	o.Events.Emit(ctx, events.New(kind, obj.PublicID, active, userID, trigger, o.Now()))
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
