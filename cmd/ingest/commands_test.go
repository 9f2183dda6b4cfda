package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/localnerve/juriiq/internal/ingest"
	"github.com/localnerve/juriiq/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T) (in, done, failed string) {
	t.Helper()
	root := t.TempDir()
	in = filepath.Join(root, "in")
	done = filepath.Join(root, "done")
	failed = filepath.Join(root, "failed")
	require.NoError(t, os.MkdirAll(in, 0o755))

	t.Setenv("DB_TYPE", "sqlite-pure")
	t.Setenv("DB_DATABASE", filepath.Join(root, "juriiq.db"))
	t.Setenv("JWT_SECRET", "cli-test-secret-that-is-long-enough")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("INGEST_INPUT_DIR", in)
	t.Setenv("INGEST_DONE_DIR", done)
	t.Setenv("INGEST_FAILED_DIR", failed)
	return in, done, failed
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	in, done, _ := setEnv(t)
	testutil.WriteFile(t, in, "kira.txt", "Kira sözleşmesinin feshi ve tahliye talebi hakkında karar. Kiracı tahliye edilmiştir.")

	out, err := execute(t, "run")
	require.NoError(t, err)

	var res ingest.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, ingest.TriggerCLI, res.Trigger)
	assert.Equal(t, 1, res.Processed)
	assert.FileExists(t, filepath.Join(done, "kira.txt"))
}

func TestRunFailuresAndReprocess(t *testing.T) {
	in, _, failed := setEnv(t)
	testutil.WriteFile(t, in, "eski.doc", "binary")

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
	assert.FileExists(t, filepath.Join(failed, "eski.doc"))

	out, err := execute(t, "failed")
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.GreaterOrEqual(t, len(fields), 2)
	assert.Equal(t, "eski.doc", fields[1])

	out, err = execute(t, "reprocess", fields[0])
	require.NoError(t, err)
	assert.Contains(t, out, "queued")
	assert.FileExists(t, filepath.Join(in, "eski.doc"))

	_, err = execute(t, "reprocess", "abc")
	assert.Error(t, err)
}

func TestEnvFileFlag(t *testing.T) {
	_, err := execute(t, "run", "-f", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment variables")
}
