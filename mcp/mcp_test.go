package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mbocsi/hostbridge/client"
	"github.com/mbocsi/hostbridge/commands"
	"github.com/mbocsi/hostbridge/owner"
	"github.com/mbocsi/hostbridge/scene"
	"github.com/mbocsi/hostbridge/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentCommand struct {
	name   string
	params map[string]any
}

type fakeBridge struct {
	sent   []sentCommand
	result map[string]any
	err    error
}

func (b *fakeBridge) Send(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	b.sent = append(b.sent, sentCommand{name: name, params: params})
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestCreateObject_OmitsUnsetArguments(t *testing.T) {
	bridge := &fakeBridge{result: map[string]any{"name": "pSphere1"}}
	s := NewMCPServer(bridge, "test")

	result, err := s.handleCreateObject(context.Background(), callTool("create_object", map[string]any{
		"type":     "SPHERE",
		"location": []any{1.0, 2.0, 3.0},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Created SPHERE object: pSphere1", resultText(t, result))

	require.Len(t, bridge.sent, 1)
	assert.Equal(t, "create_object", bridge.sent[0].name)
	assert.Equal(t, map[string]any{"type": "SPHERE", "location": []float64{1, 2, 3}}, bridge.sent[0].params)
}

func TestCreateObject_TorusArguments(t *testing.T) {
	bridge := &fakeBridge{result: map[string]any{"name": "pTorus1"}}
	s := NewMCPServer(bridge, "test")

	result, err := s.handleCreateObject(context.Background(), callTool("create_object", map[string]any{
		"type":           "TORUS",
		"major_segments": 24.0,
		"minor_radius":   0.5,
		"generate_uvs":   false,
		"align":          nil,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, map[string]any{
		"type":           "TORUS",
		"major_segments": 24.0,
		"minor_radius":   0.5,
		"generate_uvs":   false,
	}, bridge.sent[0].params)
}

func TestCreateObject_DefaultType(t *testing.T) {
	bridge := &fakeBridge{result: map[string]any{"name": "pCube1"}}
	s := NewMCPServer(bridge, "test")

	result, err := s.handleCreateObject(context.Background(), callTool("create_object", map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "Created CUBE object: pCube1", resultText(t, result))
	assert.Equal(t, map[string]any{"type": "CUBE"}, bridge.sent[0].params)
}

func TestCreateObject_BadVector(t *testing.T) {
	bridge := &fakeBridge{}
	s := NewMCPServer(bridge, "test")

	result, err := s.handleCreateObject(context.Background(), callTool("create_object", map[string]any{
		"scale": []any{1.0, "x", 3.0},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Error creating object: scale")
	assert.Empty(t, bridge.sent)
}

func TestModifyObject_ErrorIsText(t *testing.T) {
	bridge := &fakeBridge{err: errors.New("Object not found: ghost")}
	s := NewMCPServer(bridge, "test")

	result, err := s.handleModifyObject(context.Background(), callTool("modify_object", map[string]any{
		"name":    "ghost",
		"visible": false,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error modifying object: Object not found: ghost", resultText(t, result))
	assert.Equal(t, map[string]any{"name": "ghost", "visible": false}, bridge.sent[0].params)
}

func TestModifyObject_RequiresName(t *testing.T) {
	bridge := &fakeBridge{}
	s := NewMCPServer(bridge, "test")

	result, err := s.handleModifyObject(context.Background(), callTool("modify_object", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, bridge.sent)
}

func TestForwardedToolsReturnJSON(t *testing.T) {
	bridge := &fakeBridge{result: map[string]any{"object_count": 0, "objects": []any{}}}
	s := NewMCPServer(bridge, "test")

	result, err := s.handleGetSceneInfo(context.Background(), callTool("get_scene_info", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"object_count":0,"objects":[]}`, resultText(t, result))
	assert.Equal(t, "get_scene_info", bridge.sent[0].name)

	_, err = s.handleGetHostVersion(context.Background(), callTool("get_host_version", nil))
	require.NoError(t, err)
	assert.Equal(t, "about", bridge.sent[1].name)

	_, err = s.handleGetObjectInfo(context.Background(), callTool("get_object_info", map[string]any{"name": "a"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "a"}, bridge.sent[2].params)
}

func TestBridgeUnreachable(t *testing.T) {
	s := NewMCPServer(client.NewManager("127.0.0.1:1", 100*time.Millisecond), "test")

	result, err := s.handleGetSceneInfo(context.Background(), callTool("get_scene_info", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Error getting scene info: failed to connect to host at 127.0.0.1:1")
}

func TestToolsAndPromptListed(t *testing.T) {
	s := NewMCPServer(&fakeBridge{}, "test")

	tools := s.Server.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(tools)
	require.NoError(t, err)
	for _, name := range []string{"get_host_version", "get_scene_info", "get_object_info", "create_object", "modify_object", "delete_object"} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}

	prompt := s.Server.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"asset_creation_strategy"}}`))
	data, err = json.Marshal(prompt)
	require.NoError(t, err)
	assert.Contains(t, string(data), "world_bounding_box")
}

// Drives the tools through a real client connection, bridge server, owner
// thread and scene document.
func TestEndToEnd(t *testing.T) {
	exec := owner.NewExecutor(owner.DefaultQueueSize)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exec.Run(ctx)

	doc := scene.NewDocument("")
	reg := server.NewCommandRegistry()
	commands.NewHost(doc, commands.HostInfo{Name: "testhost", Version: "1.0"}).Register(reg)

	transport := server.NewTCPTransport("127.0.0.1:0")
	transport.OnCommand(server.NewDispatcher(reg, exec, nil).Dispatch)
	require.NoError(t, transport.Start())
	defer transport.Shutdown()

	manager := client.NewManager(transport.ListenAddr().String(), time.Second)
	defer manager.Close()
	s := NewMCPServer(manager, "test")

	result, err := s.handleCreateObject(ctx, callTool("create_object", map[string]any{
		"type":     "pCube1",
		"location": []any{1.0, 2.0, 3.0},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Created pCube1 object: pCube1", resultText(t, result))

	obj, err := doc.Get("pCube1")
	require.NoError(t, err)
	assert.Equal(t, scene.Vec3{1, 2, 3}, obj.Location)

	result, err = s.handleModifyObject(ctx, callTool("modify_object", map[string]any{"name": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error modifying object: Object not found: missing", resultText(t, result))

	// The connection was dropped by the failure; the next call reconnects.
	result, err = s.handleModifyObject(ctx, callTool("modify_object", map[string]any{"name": "pCube1", "visible": false}))
	require.NoError(t, err)
	assert.Equal(t, "Modified object: pCube1", resultText(t, result))

	result, err = s.handleDeleteObject(ctx, callTool("delete_object", map[string]any{"name": "pCube1"}))
	require.NoError(t, err)
	assert.Equal(t, "Deleted object: pCube1", resultText(t, result))
	assert.Equal(t, 0, doc.Len())
}
