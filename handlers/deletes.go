// ABOUTME: Delete and location MCP tool handlers
// ABOUTME: Implements delete_object, delete_objects, and location_descendants tools
package handlers

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/engine"
	"github.com/harperreed/cistore/models"
)

// Delete modes accepted by delete_object.
const (
	ModeObject    = "object"
	ModeLocations = "locations"
	ModeChildren  = "children"
)

type DeleteHandlers struct {
	engine *engine.Engine
	log    *zap.Logger
}

func NewDeleteHandlers(e *engine.Engine, log *zap.Logger) *DeleteHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeleteHandlers{engine: e, log: log}
}

type DeleteObjectInput struct {
	ID     int64  `json:"id" jsonschema:"Object public id (required)"`
	Mode   string `json:"mode,omitempty" jsonschema:"object (default): object and its own location; locations: also every descendant location; children: also the objects of descendant locations"`
	UserID int64  `json:"user_id,omitempty" jsonschema:"Acting user id"`
}

type DeleteObjectOutput struct {
	ObjectID         int64           `json:"object_id"`
	DeletedLocations []int64         `json:"deleted_locations"`
	DeletedObjects   []int64         `json:"deleted_objects"`
	Failed           []FailureOutput `json:"failed,omitempty"`
}

func (h *DeleteHandlers) DeleteObject(ctx context.Context, _ *mcp.CallToolRequest, input DeleteObjectInput) (*mcp.CallToolResult, DeleteObjectOutput, error) {
	var (
		res *models.CascadeResult
		err error
	)
	switch input.Mode {
	case "", ModeObject:
		res, err = h.engine.Cascades.DeleteObject(ctx, input.ID, input.UserID)
	case ModeLocations:
		res, err = h.engine.Cascades.DeleteObjectWithLocationSubtree(ctx, input.ID, input.UserID)
	case ModeChildren:
		res, err = h.engine.Cascades.DeleteObjectWithChildObjects(ctx, input.ID, input.UserID)
	default:
		return nil, DeleteObjectOutput{}, fmt.Errorf("invalid mode: %s (valid: object, locations, children)", input.Mode)
	}
	if err != nil {
		return nil, DeleteObjectOutput{}, fmt.Errorf("failed to delete object: %w", err)
	}

	out := DeleteObjectOutput{
		ObjectID:         res.ObjectID,
		DeletedLocations: res.DeletedLocations,
		DeletedObjects:   res.DeletedObjects,
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, failureToOutput(f))
	}
	return nil, out, nil
}

type DeleteObjectsInput struct {
	IDs    []int64 `json:"ids" jsonschema:"Public ids to delete; none of them may have a location (required)"`
	UserID int64   `json:"user_id,omitempty" jsonschema:"Acting user id"`
}

type DeleteObjectsOutput struct {
	Deleted []int64 `json:"deleted"`
}

func (h *DeleteHandlers) DeleteObjects(ctx context.Context, _ *mcp.CallToolRequest, input DeleteObjectsInput) (*mcp.CallToolResult, DeleteObjectsOutput, error) {
	if len(input.IDs) == 0 {
		return nil, DeleteObjectsOutput{}, fmt.Errorf("ids is required")
	}
	deleted, err := h.engine.Cascades.DeleteMany(ctx, input.IDs, input.UserID)
	if err != nil {
		return nil, DeleteObjectsOutput{Deleted: deleted}, fmt.Errorf("failed to delete objects: %w", err)
	}
	return nil, DeleteObjectsOutput{Deleted: deleted}, nil
}

type LocationDescendantsInput struct {
	LocationID int64 `json:"location_id" jsonschema:"Location public id (required)"`
}

type LocationOutput struct {
	PublicID int64  `json:"public_id"`
	ObjectID int64  `json:"object_id"`
	Parent   int64  `json:"parent"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
}

type LocationDescendantsOutput struct {
	Locations []LocationOutput `json:"locations"`
}

func (h *DeleteHandlers) LocationDescendants(ctx context.Context, _ *mcp.CallToolRequest, input LocationDescendantsInput) (*mcp.CallToolResult, LocationDescendantsOutput, error) {
	locs, err := h.engine.Locations.Descendants(ctx, input.LocationID)
	if err != nil {
		return nil, LocationDescendantsOutput{}, fmt.Errorf("failed to read descendants: %w", err)
	}
	out := LocationDescendantsOutput{Locations: make([]LocationOutput, len(locs))}
	for i, l := range locs {
		out.Locations[i] = LocationOutput{
			PublicID: l.PublicID,
			ObjectID: l.ObjectID,
			Parent:   l.Parent,
			Name:     l.Name,
			Type:     l.Type,
		}
	}
	return nil, out, nil
}
