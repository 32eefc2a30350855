// ABOUTME: MCP server assembly
// ABOUTME: Registers every object, delete, and location tool against one engine
package handlers

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/engine"
)

// NewServer builds an MCP server exposing the engine's tools.
func NewServer(e *engine.Engine, version string, log *zap.Logger) *mcp.Server {
	objectHandlers := NewObjectHandlers(e, log)
	deleteHandlers := NewDeleteHandlers(e, log)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "cistore",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_object",
		Description: "Get a configuration item by public id",
	}, objectHandlers.GetObject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_objects",
		Description: "Apply one patch to several objects; returns updated objects and per-id failures",
	}, objectHandlers.UpdateObjects)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_object_state",
		Description: "Activate or deactivate an object",
	}, objectHandlers.SetObjectState)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clean_type",
		Description: "Reconcile objects of a type to the type's declared fields",
	}, objectHandlers.CleanType)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_object",
		Description: "Delete an object, optionally with its location subtree and the objects in it",
	}, deleteHandlers.DeleteObject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_objects",
		Description: "Delete several objects that are not placed in the location tree",
	}, deleteHandlers.DeleteObjects)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "location_descendants",
		Description: "List every location below a location",
	}, deleteHandlers.LocationDescendants)

	return server
}
