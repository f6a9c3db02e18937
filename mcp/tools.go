package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

var primitiveTypes = []string{"CUBE", "SPHERE", "CYLINDER", "PLANE", "CONE", "TORUS", "EMPTY", "CAMERA", "LIGHT"}

func (s *MCPServer) registerSceneTools() {
	versionTool := mcp.NewTool("get_host_version",
		mcp.WithDescription("Get the name and version of the connected host application"),
	)
	s.Server.AddTool(versionTool, s.handleGetHostVersion)

	sceneTool := mcp.NewTool("get_scene_info",
		mcp.WithDescription("Get the scene name, object count, material count and the first 10 objects with their locations"),
	)
	s.Server.AddTool(sceneTool, s.handleGetSceneInfo)

	objectTool := mcp.NewTool("get_object_info",
		mcp.WithDescription("Get the transform, visibility and world bounding box of one object"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the object"),
		),
	)
	s.Server.AddTool(objectTool, s.handleGetObjectInfo)
}

func (s *MCPServer) registerObjectTools() {
	createTool := mcp.NewTool("create_object",
		mcp.WithDescription("Create a new object in the scene. Returns the name the host gave it."),
		mcp.WithString("type",
			mcp.Description("Primitive type ("+strings.Join(primitiveTypes, ", ")+"). Any other value is used as the name of a new cube."),
			mcp.DefaultString("CUBE"),
		),
		mcp.WithString("name",
			mcp.Description("Optional name for the object"),
		),
		vectorArg("location", "Optional [x, y, z] location"),
		vectorArg("rotation", "Optional [x, y, z] rotation in degrees"),
		vectorArg("scale", "Optional [x, y, z] scale factors"),
		mcp.WithString("align",
			mcp.Description("TORUS only: alignment of the torus"),
			mcp.Enum("WORLD", "VIEW", "CURSOR"),
		),
		mcp.WithNumber("major_segments", mcp.Description("TORUS only: segments of the main ring")),
		mcp.WithNumber("minor_segments", mcp.Description("TORUS only: segments of the cross section")),
		mcp.WithString("mode",
			mcp.Description("TORUS only: dimension mode"),
			mcp.Enum("MAJOR_MINOR", "EXT_INT"),
		),
		mcp.WithNumber("major_radius", mcp.Description("TORUS only: radius from the origin to the center of the cross sections")),
		mcp.WithNumber("minor_radius", mcp.Description("TORUS only: radius of the cross section")),
		mcp.WithNumber("abso_major_rad", mcp.Description("TORUS only: total exterior radius")),
		mcp.WithNumber("abso_minor_rad", mcp.Description("TORUS only: total interior radius")),
		mcp.WithBoolean("generate_uvs", mcp.Description("TORUS only: generate a default UV map")),
	)
	s.Server.AddTool(createTool, s.handleCreateObject)

	modifyTool := mcp.NewTool("modify_object",
		mcp.WithDescription("Modify an existing object. Only the given fields change."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the object to modify"),
		),
		vectorArg("location", "Optional [x, y, z] location"),
		vectorArg("rotation", "Optional [x, y, z] rotation in degrees"),
		vectorArg("scale", "Optional [x, y, z] scale factors"),
		mcp.WithBoolean("visible",
			mcp.Description("Optional visibility"),
		),
	)
	s.Server.AddTool(modifyTool, s.handleModifyObject)

	deleteTool := mcp.NewTool("delete_object",
		mcp.WithDescription("Delete an object from the scene"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the object to delete"),
		),
	)
	s.Server.AddTool(deleteTool, s.handleDeleteObject)
}

func vectorArg(name, desc string) mcp.ToolOption {
	return mcp.WithArray(name,
		mcp.Description(desc),
		mcp.Items(map[string]any{"type": "number"}),
	)
}

func (s *MCPServer) handleGetHostVersion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.forward(ctx, "about", nil, "Error getting host version")
}

func (s *MCPServer) handleGetSceneInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.forward(ctx, "get_scene_info", nil, "Error getting scene info")
}

func (s *MCPServer) handleGetObjectInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required and must be a string"), nil
	}
	return s.forward(ctx, "get_object_info", map[string]any{"name": name}, "Error getting object info")
}

func (s *MCPServer) handleCreateObject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := request.GetString("type", "CUBE")
	params := map[string]any{"type": typ}
	if name := request.GetString("name", ""); name != "" {
		params["name"] = name
	}
	if err := copyVectors(request, params, "location", "rotation", "scale"); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error creating object: %v", err)), nil
	}
	copyGiven(request, params, torusArgs...)

	result, err := s.bridge.Send(ctx, "create_object", params)
	if err != nil {
		slog.Error("Error creating object", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error creating object: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created %s object: %v", typ, result["name"])), nil
}

func (s *MCPServer) handleModifyObject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required and must be a string"), nil
	}
	params := map[string]any{"name": name}
	if err := copyVectors(request, params, "location", "rotation", "scale"); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error modifying object: %v", err)), nil
	}
	if v, ok := request.GetArguments()["visible"]; ok && v != nil {
		params["visible"] = request.GetBool("visible", true)
	}

	result, err := s.bridge.Send(ctx, "modify_object", params)
	if err != nil {
		slog.Error("Error modifying object", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error modifying object: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Modified object: %v", result["name"])), nil
}

func (s *MCPServer) handleDeleteObject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required and must be a string"), nil
	}

	result, err := s.bridge.Send(ctx, "delete_object", map[string]any{"name": name})
	if err != nil {
		slog.Error("Error deleting object", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error deleting object: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted object: %v", result["name"])), nil
}

// forward sends a command and returns its result as indented JSON.
func (s *MCPServer) forward(ctx context.Context, command string, params map[string]any, errPrefix string) (*mcp.CallToolResult, error) {
	result, err := s.bridge.Send(ctx, command, params)
	if err != nil {
		slog.Error(errPrefix, "command", command, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", errPrefix, err)), nil
	}
	resultBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

// Shape arguments passed through to the host untouched.
var torusArgs = []string{
	"align", "major_segments", "minor_segments", "mode",
	"major_radius", "minor_radius", "abso_major_rad", "abso_minor_rad", "generate_uvs",
}

func copyGiven(request mcp.CallToolRequest, params map[string]any, keys ...string) {
	args := request.GetArguments()
	for _, key := range keys {
		if v, ok := args[key]; ok && v != nil {
			params[key] = v
		}
	}
}

// copyVectors copies the [x, y, z] arguments that were given into params.
func copyVectors(request mcp.CallToolRequest, params map[string]any, keys ...string) error {
	args := request.GetArguments()
	for _, key := range keys {
		v, ok := args[key]
		if !ok || v == nil {
			continue
		}
		vec, err := toVector(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		params[key] = vec
	}
	return nil
}

func toVector(v any) ([]float64, error) {
	items, ok := v.([]any)
	if !ok {
		if fs, ok := v.([]float64); ok {
			items = make([]any, len(fs))
			for i, f := range fs {
				items[i] = f
			}
		} else {
			return nil, fmt.Errorf("expected a list of 3 numbers")
		}
	}
	if len(items) != 3 {
		return nil, fmt.Errorf("expected 3 components, got %d", len(items))
	}
	out := make([]float64, 3)
	for i, item := range items {
		switch n := item.(type) {
		case float64:
			out[i] = n
		case int:
			out[i] = float64(n)
		default:
			return nil, fmt.Errorf("component %d is not a number", i)
		}
	}
	return out, nil
}
