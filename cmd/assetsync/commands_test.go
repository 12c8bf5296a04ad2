package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, buildVersion+"\n", out.String())
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"menu", "check", "download", "status", "watch", "version"})

	check, _, err := root.Find([]string{"check"})
	require.NoError(t, err)
	assert.NotNil(t, check.Flags().Lookup("silent"))
}

func TestMissingConfigFileFails(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"status", "--config", t.TempDir() + "/missing.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration file")
}
