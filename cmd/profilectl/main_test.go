package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReplay_DryRunFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"event_type":"rows.created","table_id":7,"items":[{"id":42,"Full Name":"Ada"}]}`), 0o644))

	out, err := execute(t, "", "replay", "--dry-run", path)
	require.NoError(t, err)

	var res replayResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "accepted", res.Decision)
	assert.Equal(t, int64(42), res.RecordID)
	assert.Equal(t, "7", res.TableID)
	assert.Empty(t, res.Status)
}

func TestReplay_IgnoredFromStdin(t *testing.T) {
	out, err := execute(t, `{"event_type":"rows.created","table_id":7,"items":[{"id":0}]}`, "replay", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"decision": "ignored"`)
	assert.Contains(t, out, "Webhook test successful")
}

func TestReplay_MissingFile(t *testing.T) {
	_, err := execute(t, "", "replay", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestRender_InvalidID(t *testing.T) {
	_, err := execute(t, "", "render", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid record id")
}

func TestCheckConfig(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("BASEROW_API_URL", "https://api.baserow.io/api/database/rows/table/")
	t.Setenv("BASEROW_TOKEN", "tok")
	t.Setenv("TABLE_ID", "7")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")

	out, err := execute(t, "", "check-config")
	require.NoError(t, err)
	assert.Contains(t, out, "Storage:   minio")
	assert.Contains(t, out, "token set")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "OK"))

	t.Setenv("BASEROW_TOKEN", "")
	out, err = execute(t, "", "check-config")
	require.Error(t, err)
	assert.Contains(t, out, "BASEROW_TOKEN is required")
}
