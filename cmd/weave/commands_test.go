package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shoutPipeline = `name: shout
input:
  values: ["hello world"]
pipeline:
  - type: split
    method: separator
    name: words
  - type: transform
    method: template
    name: upper
    parameters:
      template: "{{ upper . }}"
`

func writePipeline(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, runCLI(t, "validate", writePipeline(t, shoutPipeline)))
	})

	t.Run("defaults", func(t *testing.T) {
		path := writePipeline(t, `defaults:
  min: 4
pipeline:
  - type: split
    method: separator
    name: words
  - type: filter
    method: length
    name: long
`)
		assert.NoError(t, runCLI(t, "validate", path))
	})

	t.Run("unknown step", func(t *testing.T) {
		path := writePipeline(t, `pipeline:
  - type: nope
    method: nothing
    name: a
`)
		err := runCLI(t, "validate", path)
		assert.ErrorIs(t, err, domain.ErrConfigMismatch)
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, runCLI(t, "validate", filepath.Join(t.TempDir(), "absent.yaml")))
	})
}

func TestRunCommand_PersistsToBadger(t *testing.T) {
	dir := t.TempDir()
	path := writePipeline(t, shoutPipeline)

	require.NoError(t, runCLI(t, "--store", "badger", "--data-dir", dir, "run", path))
	assert.NoError(t, runCLI(t, "--store", "badger", "--data-dir", dir, "runs", "ls"))

	err := runCLI(t, "--store", "badger", "--data-dir", dir, "runs", "inspect", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunCommand_DryRun(t *testing.T) {
	path := writePipeline(t, shoutPipeline)
	assert.NoError(t, runCLI(t, "--store", "memory", "run", "--dry-run", path))
}
