package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args against an isolated data
// directory and returns stdout.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PULSE_DATA_DIR", dataDir)

	flags = rootFlags{}
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"ingest", "search", "similar", "recent", "facets",
		"tags", "types", "stats", "watch", "artifacts", "config", "version",
	} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version", "--json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info["version"])
}

func TestTypesCmd_ListsExtractors(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "types")
	require.NoError(t, err)
	assert.Contains(t, out, "spreadsheet")
	assert.Contains(t, out, "document")
	assert.Contains(t, out, ".csv")
}

func TestIngestThenSearch_EndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()
	path := filepath.Join(docs, "deploy.md")
	require.NoError(t, os.WriteFile(path,
		[]byte("# Deployment\nRoll out with the blue-green strategy.\n"), 0o644))

	out, err := runCLI(t, dataDir, "ingest", docs, "--recursive", "--tag", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "1 files: 1 ok, 0 failed")

	out, err = runCLI(t, dataDir, "search", "deployment strategy", "--json")
	require.NoError(t, err)

	var resp struct {
		Results []struct {
			Item struct {
				Path string   `json:"path"`
				Tags []string `json:"tags"`
			} `json:"item"`
		} `json:"results"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotZero(t, resp.Total)
	assert.Equal(t, path, resp.Results[0].Item.Path)
	assert.Contains(t, resp.Results[0].Item.Tags, "ops")
}

func TestSearchCmd_TagFilterWithoutQuery(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "runbook.txt"),
		[]byte("restart the ingest workers"), 0o644))

	_, err := runCLI(t, dataDir, "ingest", docs, "-r", "--tag", "oncall")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "search", "--tag", "oncall", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "runbook.txt")
}

func TestStatsCmd_CountsIndexedContent(t *testing.T) {
	dataDir := t.TempDir()
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"), []byte("alpha"), 0o644))

	_, err := runCLI(t, dataDir, "ingest", docs, "-r")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "stats", "--json")
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 1, stats["items"])
}

func TestArtifactsLifecycle_ViaCLI(t *testing.T) {
	dataDir := t.TempDir()
	model := filepath.Join(t.TempDir(), "clf.bin")
	require.NoError(t, os.WriteFile(model, []byte("weights"), 0o644))

	out, err := runCLI(t, dataDir, "artifacts", "register", model,
		"--name", "spam-clf", "--version", "1.0.0",
		"--model-type", "classification", "--metric", "f1=0.91", "--json")
	require.NoError(t, err)

	var artifact struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &artifact))
	require.NotZero(t, artifact.ID)

	out, err = runCLI(t, dataDir, "artifacts", "list", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "spam-clf")

	// Duplicate version must be rejected.
	_, err = runCLI(t, dataDir, "artifacts", "register", model,
		"--name", "spam-clf", "--version", "1.0.0")
	require.Error(t, err)
}

func TestIngestCmd_MissingPathFails(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "ingest", "/does/not/exist")
	require.Error(t, err)
}
