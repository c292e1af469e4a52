package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobilecore/internal/api"
	"git.home.luguber.info/inful/mobilecore/internal/config"
)

func TestParseData(t *testing.T) {
	got, err := parseData([]string{"action=tap", "url=https://x.example.com/?a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"action": "tap", "url": "https://x.example.com/?a=b"}, got)

	_, err = parseData([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseData([]string{"=x"})
	assert.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, config.LogConfig{Format: config.LogFormatJSON}, false).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	l := NewLogger(&buf, config.LogConfig{Level: config.LogLevelWarn}, false)
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")

	buf.Reset()
	NewLogger(&buf, config.LogConfig{Level: config.LogLevelError}, true).Debug("verbose")
	assert.Contains(t, buf.String(), "verbose")
}

func TestPrintQueues(t *testing.T) {
	var buf bytes.Buffer
	printQueues(&buf, []api.QueueDTO{
		{Table: "signal_hits", Size: 2},
		{Table: "other", Suspended: true},
	})
	out := buf.String()
	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "signal_hits")
	assert.Contains(t, out, "suspended")
}

func TestCLIParsesCommands(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Bind(&Global{}), kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"dispatch", "--type", "t", "--source", "s", "-d", "a=1", "-d", "b=2"})
	require.NoError(t, err)
	assert.Equal(t, "dispatch", ctx.Command())
	assert.Equal(t, []string{"a=1", "b=2"}, cli.Dispatch.Data)

	ctx, err = parser.Parse([]string{"queue", "purge", "--table", "signal_hits", "--token", "x"})
	require.NoError(t, err)
	assert.Equal(t, "queue purge", ctx.Command())
	assert.Equal(t, "x", cli.Queue.Purge.Token)
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mobilecore.yaml")
	cmd := &InitCmd{}
	require.NoError(t, cmd.Run(&Global{}, &CLI{Config: path}))

	_, err := os.Stat(path)
	require.NoError(t, err)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Rules)

	assert.Error(t, cmd.Run(&Global{}, &CLI{Config: path}))
}
