// ABOUTME: Object MCP tool handlers
// ABOUTME: Implements get_object, update_objects, set_object_state, and clean_type tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/engine"
	"github.com/harperreed/cistore/models"
)

type ObjectHandlers struct {
	engine *engine.Engine
	log    *zap.Logger
}

func NewObjectHandlers(e *engine.Engine, log *zap.Logger) *ObjectHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &ObjectHandlers{engine: e, log: log}
}

type FieldInput struct {
	Name  string      `json:"name" jsonschema:"Field name"`
	Value interface{} `json:"value" jsonschema:"Field value (any JSON value)"`
}

type FieldOutput struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

type ObjectOutput struct {
	PublicID     int64         `json:"public_id"`
	TypeID       int64         `json:"type_id"`
	Version      string        `json:"version"`
	Active       bool          `json:"active"`
	AuthorID     int64         `json:"author_id"`
	EditorID     *int64        `json:"editor_id,omitempty"`
	CreationTime string        `json:"creation_time"`
	LastEditTime string        `json:"last_edit_time,omitempty"`
	Fields       []FieldOutput `json:"fields"`
}

type FailureOutput struct {
	PublicID   int64  `json:"public_id"`
	Collection string `json:"collection"`
	Message    string `json:"error_message"`
	Status     int    `json:"status"`
}

func failureToOutput(f models.FailureRecord) FailureOutput {
	return FailureOutput{
		PublicID:   f.PublicID,
		Collection: f.Collection,
		Message:    f.Message,
		Status:     f.Status,
	}
}

type UpdateOutput struct {
	Results []ObjectOutput  `json:"results"`
	Failed  []FailureOutput `json:"failed"`
}

func objectToOutput(o *models.Object) ObjectOutput {
	out := ObjectOutput{
		PublicID:     o.PublicID,
		TypeID:       o.TypeID,
		Version:      o.Version,
		Active:       o.Active,
		AuthorID:     o.AuthorID,
		EditorID:     o.EditorID,
		CreationTime: o.CreationTime.Format(time.RFC3339),
		Fields:       make([]FieldOutput, len(o.Fields)),
	}
	if o.LastEditTime != nil {
		out.LastEditTime = o.LastEditTime.Format(time.RFC3339)
	}
	for i, f := range o.Fields {
		out.Fields[i] = FieldOutput{Name: f.Name, Value: f.Value}
	}
	return out
}

func updateToOutput(res *models.UpdateResult) UpdateOutput {
	out := UpdateOutput{
		Results: make([]ObjectOutput, len(res.Results)),
		Failed:  make([]FailureOutput, len(res.Failed)),
	}
	for i := range res.Results {
		out.Results[i] = objectToOutput(&res.Results[i])
	}
	for i, f := range res.Failed {
		out.Failed[i] = failureToOutput(f)
	}
	return out
}

type GetObjectInput struct {
	ID int64 `json:"id" jsonschema:"Object public id (required)"`
}

func (h *ObjectHandlers) GetObject(ctx context.Context, _ *mcp.CallToolRequest, input GetObjectInput) (*mcp.CallToolResult, ObjectOutput, error) {
	obj, err := h.engine.Mutations.Get(ctx, input.ID)
	if err != nil {
		return nil, ObjectOutput{}, fmt.Errorf("failed to get object: %w", err)
	}
	return nil, objectToOutput(obj), nil
}

type UpdateObjectsInput struct {
	IDs     []int64      `json:"ids" jsonschema:"Public ids of the objects to update (required)"`
	Fields  []FieldInput `json:"fields,omitempty" jsonschema:"Field values to set, matched by name"`
	Active  *bool        `json:"active,omitempty" jsonschema:"New active flag"`
	Version *string      `json:"version,omitempty" jsonschema:"Version to rebase the bump on, MAJOR.MINOR.PATCH"`
	UserID  int64        `json:"user_id,omitempty" jsonschema:"Acting user id"`
}

func (h *ObjectHandlers) UpdateObjects(ctx context.Context, _ *mcp.CallToolRequest, input UpdateObjectsInput) (*mcp.CallToolResult, UpdateOutput, error) {
	if len(input.IDs) == 0 {
		return nil, UpdateOutput{}, fmt.Errorf("ids is required")
	}

	patch := models.ObjectPatch{Active: input.Active, Version: input.Version}
	for _, f := range input.Fields {
		patch.Fields = append(patch.Fields, models.Field{Name: f.Name, Value: f.Value})
	}

	res := h.engine.Mutations.UpdateMany(ctx, input.IDs, patch, input.UserID)
	h.log.Info("update_objects",
		zap.Int("updated", len(res.Results)),
		zap.Int("failed", len(res.Failed)),
	)
	return nil, updateToOutput(res), nil
}

type SetObjectStateInput struct {
	ID     int64 `json:"id" jsonschema:"Object public id (required)"`
	Active bool  `json:"active" jsonschema:"Desired active flag"`
	UserID int64 `json:"user_id,omitempty" jsonschema:"Acting user id"`
}

type SetObjectStateOutput struct {
	ID      int64 `json:"id"`
	Active  bool  `json:"active"`
	Changed bool  `json:"changed"`
}

func (h *ObjectHandlers) SetObjectState(ctx context.Context, _ *mcp.CallToolRequest, input SetObjectStateInput) (*mcp.CallToolResult, SetObjectStateOutput, error) {
	changed, err := h.engine.Mutations.SetActive(ctx, input.ID, input.Active, input.UserID)
	if err != nil {
		return nil, SetObjectStateOutput{}, fmt.Errorf("failed to set object state: %w", err)
	}
	return nil, SetObjectStateOutput{ID: input.ID, Active: input.Active, Changed: changed}, nil
}

type CleanTypeInput struct {
	TypeID int64 `json:"type_id" jsonschema:"Type public id (required)"`
	DryRun bool  `json:"dry_run,omitempty" jsonschema:"Only list the objects that would be cleaned"`
	UserID int64 `json:"user_id,omitempty" jsonschema:"Acting user id"`
}

type CleanTypeOutput struct {
	Unstructured []int64       `json:"unstructured"`
	Result       *UpdateOutput `json:"result,omitempty"`
}

func (h *ObjectHandlers) CleanType(ctx context.Context, _ *mcp.CallToolRequest, input CleanTypeInput) (*mcp.CallToolResult, CleanTypeOutput, error) {
	objs, err := h.engine.Mutations.UnstructuredObjects(ctx, input.TypeID)
	if err != nil {
		return nil, CleanTypeOutput{}, fmt.Errorf("failed to list unstructured objects: %w", err)
	}
	out := CleanTypeOutput{Unstructured: make([]int64, len(objs))}
	for i, o := range objs {
		out.Unstructured[i] = o.PublicID
	}
	if input.DryRun {
		return nil, out, nil
	}

	res, err := h.engine.Mutations.CleanType(ctx, input.TypeID, input.UserID)
	if err != nil {
		return nil, CleanTypeOutput{}, fmt.Errorf("failed to clean type: %w", err)
	}
	result := updateToOutput(res)
	out.Result = &result
	return nil, out, nil
}
