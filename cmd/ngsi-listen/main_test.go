package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngsi-go/ngsi/pkg/config"
	"github.com/ngsi-go/ngsi/pkg/model"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-broker", "http://b:1026", "-type", "Room", "-attrs", "temperature"})
	require.NoError(t, err)
	assert.Equal(t, "http://b:1026", opts.Broker)
	assert.Equal(t, "Room", opts.Type)
	assert.Equal(t, "temperature", opts.Attrs)
	assert.Equal(t, "info", opts.LogLevel)
}

func TestParseFlagsFromEnv(t *testing.T) {
	t.Setenv("NGSI_BROKER", "http://env:1026")
	t.Setenv("NGSI_PUBLIC_URL", "http://me:8666/notify")

	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://env:1026", opts.Broker)
	assert.Equal(t, "http://me:8666/notify", opts.PublicURL)
}

func TestParseFlagsExclusive(t *testing.T) {
	_, err := parseFlags([]string{"-broker", "http://b:1026", "-discover"})
	assert.Error(t, err)
}

func TestBuildConfig(t *testing.T) {
	cfg, err := buildConfig(Options{
		Broker:    "http://b:1026",
		Listen:    "127.0.0.1:9000",
		PublicURL: "http://me:9000/notify",
		Trace:     "out.ntrace",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://b:1026", cfg.Broker.URL)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listener.Address)
	assert.Equal(t, "http://me:9000/notify", cfg.Listener.PublicURL)
	assert.Equal(t, "out.ntrace", cfg.ProtocolLog.Path)
	assert.Equal(t, "/notify", cfg.Listener.Path)
}

func TestBuildConfigRequiresBroker(t *testing.T) {
	_, err := buildConfig(Options{})
	assert.True(t, errors.Is(err, config.ErrInvalid))

	cfg, err := buildConfig(Options{Discover: true})
	require.NoError(t, err)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Empty(t, cfg.Broker.URL)
}

func TestBuildConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ngsi.yaml")
	data := "broker:\n  url: http://file:1026\n  service: smart\nlistener:\n  path: /hook\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := buildConfig(Options{ConfigFile: path, Broker: "http://flag:1026"})
	require.NoError(t, err)
	assert.Equal(t, "http://flag:1026", cfg.Broker.URL)
	assert.Equal(t, "smart", cfg.Broker.Service)
	assert.Equal(t, "/hook", cfg.Listener.Path)
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = parseLevel("verbose")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestSubscribeOptions(t *testing.T) {
	assert.Len(t, subscribeOptions("", "", ""), 1)
	assert.Len(t, subscribeOptions("Room", "urn:.*", "temperature,humidity"), 4)
}

func TestFormatEntity(t *testing.T) {
	e := model.NewDynamicEntity("r1", "Room")
	e.Set("temperature", model.NewTypedAttribute(21.5, "Number"))
	e.SetValue("name", "Kitchen")

	out := formatEntity("sub-1", e)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[sub:sub-1] r1 (Room)")
	assert.Equal(t, "  name = Kitchen", lines[1])
	assert.Equal(t, "  temperature = 21.5 (Number)", lines[2])
}
