package main

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands(t *testing.T) {
	app := newApp()
	names := make([]string, 0, len(app.Commands))
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"serve", "daemon", "tui", "version"}, names)
	assert.NotNil(t, app.Command("serve"))
}

func TestPidFile(t *testing.T) {
	dir := t.TempDir()

	_, running := daemonRunning(dir)
	assert.False(t, running)

	require.NoError(t, writePidFile(dir))
	pid, running := daemonRunning(dir)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, removePidFile(dir))
	require.NoError(t, removePidFile(dir))
	_, running = daemonRunning(dir)
	assert.False(t, running)
}

func TestPidFileRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(pidFilePath(dir), []byte("not-a-pid"), 0o644))
	_, err := readPidFile(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(pidFilePath(dir), []byte(strconv.Itoa(-4)), 0o644))
	_, err = readPidFile(dir)
	assert.Error(t, err)
}
