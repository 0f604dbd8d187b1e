package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCommand(t *testing.T) {
	root, _ := auditedProject(t)

	out, err := execute(t, "stats", "accept-cookies", "--project", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Script accept-cookies")
	assert.Contains(t, out, "Runs:         1")
	assert.Contains(t, out, "Succeeded:    1")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "home")
}

func TestStatsCommand_UnknownScript(t *testing.T) {
	root, _ := newProject(t)

	_, err := execute(t, "stats", "never-ran", "--project", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script never-ran has never run")
}
