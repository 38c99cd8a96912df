package cli

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clankers-project/clankers/internal/events"
	"github.com/clankers-project/clankers/internal/fleet"
	"github.com/clankers-project/clankers/internal/network"
	"github.com/clankers-project/clankers/internal/stats"
	"github.com/clankers-project/clankers/internal/telemetry"
	"github.com/clankers-project/clankers/internal/util"
)

func executeCLI(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()

	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	prevProcs := runtime.GOMAXPROCS(0)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
		runtime.GOMAXPROCS(prevProcs)
	})
	t.Setenv("CLANKERS_LOG_CONSOLE", "false")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeList(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	return path
}

// silentServer accepts connections and never answers, so every clanker
// stays in its handshake until shutdown.
func silentServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestHelp(t *testing.T) {
	stdout, _, err := executeCLI(t, context.Background(), "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "/$$$$$$")
	assert.Contains(t, stdout, "--message-interval")
	assert.Contains(t, stdout, "CLANKERS_DESTINATION")
	assert.Equal(t, ExitOK, ExitCode(err))
}

func TestInvalidArguments(t *testing.T) {
	dir := t.TempDir()
	messages := writeList(t, dir, "messages.txt", "hi")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing destination",
			args:    []string{"--clankers", "1", "--message-list", messages, "--message-interval", "100"},
			wantErr: "destination address must not be empty",
		},
		{
			name:    "zero clankers",
			args:    []string{"--destination", "localhost:25565", "--message-list", messages, "--message-interval", "100"},
			wantErr: "the number of clankers must not be zero",
		},
		{
			name:    "missing message list",
			args:    []string{"--destination", "localhost:25565", "--clankers", "1", "--message-interval", "100"},
			wantErr: "message list is missing",
		},
		{
			name:    "missing name list file",
			args:    []string{"--destination", "localhost:25565", "--clankers", "1", "--message-list", messages, "--message-interval", "100", "--name-list", filepath.Join(dir, "nope.txt")},
			wantErr: "doesn't exist on the filesystem",
		},
		{
			name:    "non numeric clankers",
			args:    []string{"--clankers", "many"},
			wantErr: "invalid argument",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "positional argument",
			args:    []string{"extra"},
			wantErr: "unknown command",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := executeCLI(t, context.Background(), tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Equal(t, ExitInvalidArguments, ExitCode(err))
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	dir := t.TempDir()
	empty := writeList(t, dir, "empty.txt", "", "   ")

	t.Run("unreadable message list", func(t *testing.T) {
		_, _, err := executeCLI(t, context.Background(),
			"--destination", "localhost:25565", "--clankers", "1", "--message-interval", "100",
			"--message-list", filepath.Join(dir, "gone.txt"), "--log-dir", filepath.Join(dir, "logs"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Equal(t, ExitRuntime, ExitCode(err))
	})

	t.Run("blank message list", func(t *testing.T) {
		_, _, err := executeCLI(t, context.Background(),
			"--destination", "localhost:25565", "--clankers", "1", "--message-interval", "100",
			"--message-list", empty, "--log-dir", filepath.Join(dir, "logs"))
		require.Error(t, err)
		assert.ErrorIs(t, err, fleet.ErrNoMessages)
		assert.Equal(t, ExitRuntime, ExitCode(err))
	})

	t.Run("blank name list", func(t *testing.T) {
		messages := writeList(t, dir, "messages.txt", "hi")
		_, _, err := executeCLI(t, context.Background(),
			"--destination", "localhost:25565", "--clankers", "1", "--message-interval", "100",
			"--message-list", messages, "--name-list", empty, "--log-dir", filepath.Join(dir, "logs"))
		require.Error(t, err)
		assert.ErrorIs(t, err, fleet.ErrNoNames)
		assert.Equal(t, ExitRuntime, ExitCode(err))
	})
}

func TestRunUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	messages := writeList(t, dir, "messages.txt", "hello", "world")
	names := writeList(t, dir, "names.txt", "steve", "alex")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	stdout, _, err := executeCLI(t, ctx,
		"--destination", silentServer(t),
		"--clankers", "2",
		"--threads", "2",
		"--name-list", names,
		"--message-list", messages,
		"--message-interval", "1000",
		"--log-dir", logDir,
		"--log-level", "debug",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "/$$$$$$")
	assert.Contains(t, stdout, "SLOTS")

	data, err := os.ReadFile(util.LogFilePath(logDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "starting with 2 threads")
	assert.Contains(t, string(data), "fleet stopped")
}

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// brokerClient records topics instead of talking to a broker.
type brokerClient struct {
	mqtt.Client

	mu        sync.Mutex
	connected bool
	topics    []string
}

func (c *brokerClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return doneToken{}
}

func (c *brokerClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *brokerClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *brokerClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return doneToken{}
}

func (c *brokerClient) published() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

func TestRunPublishesFleetLifecycle(t *testing.T) {
	dir := t.TempDir()
	messages := writeList(t, dir, "messages.txt", "hello")

	client := &brokerClient{}
	telemetryOptions = []telemetry.Option{telemetry.WithClient(client)}
	t.Cleanup(func() { telemetryOptions = nil })

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, _, err := executeCLI(t, ctx,
		"--destination", silentServer(t),
		"--clankers", "2",
		"--message-list", messages,
		"--message-interval", "1000",
		"--log-dir", filepath.Join(dir, "logs"),
		"--mqtt-broker", "tcp://broker.invalid:1883",
	)
	require.NoError(t, err)

	topics := client.published()
	require.NotEmpty(t, topics)
	assert.Equal(t, "clankers/fleet/started", topics[0])
	assert.Contains(t, topics, "clankers/fleet/stopped")
	assert.Equal(t, "clankers/status", topics[len(topics)-1], "final status follows fleet_stopped")
	assert.Less(t, slices.Index(topics, "clankers/fleet/stopped"), len(topics)-1)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeList(t, dir, "clankers.yaml",
		"destination: localhost",
		"clankers: 3",
	)

	_, _, err := executeCLI(t, context.Background(), "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination must be HOST:PORT", "destination comes from the file")
	assert.NotContains(t, err.Error(), "clankers must not be zero")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitRuntime, ExitCode(runtimeError(errors.New("boom"))))
	assert.Equal(t, ExitInvalidArguments, ExitCode(errors.New("flag error")))
}

func TestRenderStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	RenderStatus(&buf, Status{
		Destination: "mc.local:25565",
		Clankers:    4,
		Stats: stats.Snapshot{
			Uptime:  90 * time.Second,
			Joined:  6,
			Failed:  3,
			Playing: 2,
			FailedBy: []stats.ClassCount{
				{Class: "ECONNRESET", Count: 2},
				{Class: "", Count: 1},
			},
			LastFailure: &events.SessionPayload{Name: "bob7", Stage: events.StagePlay, Error: "disconnected: bye"},
		},
		Sessions: []network.ConnectionInfo{
			{Slot: 0, Name: "a", Compression: true},
			{Slot: 1, Name: "b"},
		},
		Usage: &util.ProcessUsage{Goroutines: 12, RSSMB: 30},
	})

	out := buf.String()
	assert.Contains(t, out, "clankers -> mc.local:25565 (up 1m30s)")
	assert.Contains(t, out, "COMPRESSED")
	assert.Contains(t, out, "ECONNRESET")
	assert.Contains(t, out, "last failure: clanker 'bob7' at play: disconnected: bye")
	assert.Contains(t, out, "12 goroutines")
}
