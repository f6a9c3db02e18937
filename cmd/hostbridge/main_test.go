package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mbocsi/hostbridge/commands"
	"github.com/mbocsi/hostbridge/owner"
	"github.com/mbocsi/hostbridge/scene"
	"github.com/mbocsi/hostbridge/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRootCommand(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func startBridge(t *testing.T) (host, port string, doc *scene.Document) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	exec := owner.NewExecutor(owner.DefaultQueueSize)
	go exec.Run(ctx)

	doc = scene.NewDocument("")
	reg := server.NewCommandRegistry()
	commands.NewHost(doc, commands.HostInfo{Name: "testhost", Version: "1.0"}).Register(reg)

	transport := server.NewTCPTransport("127.0.0.1:0")
	transport.OnCommand(server.NewDispatcher(reg, exec, nil).Dispatch)
	require.NoError(t, transport.Start())
	t.Cleanup(func() { transport.Shutdown() })

	host, port, err := net.SplitHostPort(transport.ListenAddr().String())
	require.NoError(t, err)
	return host, port, doc
}

func TestVersionCommand(t *testing.T) {
	stdout, stderr, err := executeRootCommand(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Equal(t, "hostbridge "+version+"\n", stdout)
}

func TestSendCommand(t *testing.T) {
	host, port, doc := startBridge(t)

	stdout, _, err := executeRootCommand(t, context.Background(),
		"send", "--host", host, "--port", port, "--log-level", "error",
		"create_object", `{"type":"SPHERE","location":[0,1,0]}`)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "pSphere1", result["name"])
	assert.Equal(t, 1, doc.Len())
}

func TestSendCommand_RemoteError(t *testing.T) {
	host, port, _ := startBridge(t)

	_, _, err := executeRootCommand(t, context.Background(),
		"send", "--host", host, "--port", port, "--log-level", "error",
		"delete_object", `{"name":"ghost"}`)
	require.EqualError(t, err, "Object not found: ghost")
}

func TestSendCommand_BadParams(t *testing.T) {
	_, _, err := executeRootCommand(t, context.Background(), "send", "about", "[1,2]")
	require.ErrorContains(t, err, "params must be a JSON object")
}

func TestSendCommand_Unreachable(t *testing.T) {
	_, _, err := executeRootCommand(t, context.Background(),
		"send", "--host", "127.0.0.1", "--port", "1", "--timeout", "200ms", "about")
	require.ErrorContains(t, err, "failed to connect to host at 127.0.0.1:1")
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	_, _, err := executeRootCommand(t, context.Background(), "serve", "--log-format", "xml")
	require.ErrorContains(t, err, "log.format")
}

func TestServeCommand_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := executeRootCommand(t, ctx, "serve", "--host", "127.0.0.1", "--port", "0", "--log-level", "error")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}
