package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

const assetCreationStrategy = `When building 3D content in the host scene:

0. Start by calling get_scene_info() to see what already exists.

1. Use create_object() for every shape.

2. Give every object a meaningful name.

3. Use the world_bounding_box of each object to check that
   - objects that should not intersect do not intersect
   - objects have the intended spatial relationship.

4. After setting location, rotation or scale with create_object() or
   modify_object(), confirm the result with get_object_info(), including the
   world_bounding_box, so the object ends up where it was meant to.

Only fall back to plain primitives when a simple primitive is explicitly
requested or the task only needs a basic material or color.`

func (s *MCPServer) registerPrompts() {
	prompt := mcp.NewPrompt("asset_creation_strategy",
		mcp.WithPromptDescription("Preferred strategy for creating assets in the host scene"),
	)
	s.Server.AddPrompt(prompt, handleAssetCreationStrategy)
}

func handleAssetCreationStrategy(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return mcp.NewGetPromptResult(
		"Preferred strategy for creating assets in the host scene",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(assetCreationStrategy)),
		},
	), nil
}
