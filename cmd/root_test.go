package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/dataset"
)

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/games/pong/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<html><head><title>Pong | GameDistribution.com</title>
<meta name="description" content="Classic paddles.">
<meta name="keywords" content="Retro, Sports">
</head><body><h1>Pong</h1></body></html>`)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /games/secret/\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunCaptureWritesDataset(t *testing.T) {
	srv := newCatalogServer(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "data", "games.jsonl")
	input := filepath.Join(dir, "targets.txt")
	require.NoError(t, os.WriteFile(input, []byte("# queued\n\nsecret\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"capture", "pong",
		"--input-file", input,
		"--output", output,
		"--img-dir", filepath.Join(dir, "img"),
		"--base-url", srv.URL,
		"--rate-limit", "0s",
		"--retries", "1",
	}, &stdout, &stderr)
	require.Equal(t, ExitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "captured 1, failed 1")

	ds, err := dataset.NewStore(output, dataset.FormatJSONL, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Equal(t, []string{"pong", "secret"}, ds.Slugs())
	assert.Equal(t, "Pong", catalog.Deref(ds["pong"].Name))
	assert.Equal(t, "Classic paddles.", catalog.Deref(ds["pong"].Description))
	assert.Equal(t, []string{"Retro", "Sports"}, ds["pong"].Tags)
	assert.Contains(t, catalog.Deref(ds["secret"].Error), catalog.ErrRobotsDisallowed.Error())
}

func TestRunCaptureWithConfigFile(t *testing.T) {
	srv := newCatalogServer(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "games.json")
	textfile := filepath.Join(dir, "catalog.prom")
	cfgPath := filepath.Join(dir, "catalog.yaml")
	cfgYAML := fmt.Sprintf(`output:
  path: %s
  format: json
assets:
  dir: %s
http:
  min_interval: 0s
  max_attempts: 1
catalog:
  base_url: %s
metrics:
  textfile: %s
`, output, filepath.Join(dir, "img"), srv.URL, textfile)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"capture", "--config", cfgPath, "pong"}, &stdout, &stderr)
	require.Equal(t, ExitOK, code, stderr.String())

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(raw)), "["), "json format writes an array")

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "catalog_captures_total")
}

func TestRunWithoutTargets(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"capture", "--output", filepath.Join(dir, "games.jsonl")}, &stdout, &stderr)

	assert.Equal(t, ExitNoTargets, code)
	assert.Contains(t, stderr.String(), "no targets")
	_, err := os.Stat(filepath.Join(dir, "games.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunCorruptDatasetFails(t *testing.T) {
	srv := newCatalogServer(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "games.json")
	require.NoError(t, os.WriteFile(output, []byte("{not json"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"capture", "pong",
		"--output", output,
		"--format", "json",
		"--img-dir", filepath.Join(dir, "img"),
		"--base-url", srv.URL,
		"--rate-limit", "0s",
	}, &stdout, &stderr)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr.String(), catalog.ErrDatasetCorrupt.Error())
}

func TestRunInvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"capture", "pong", "--retries", "0"}, &stdout, &stderr)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr.String(), "http.max_attempts")
}

func TestCollectTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "targets.txt")
	require.NoError(t, os.WriteFile(input, []byte("  alpha  \n# beta\n\ngamma\n"), 0o600))

	got, err := collectTargets([]string{"first", " "}, input)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "alpha", "gamma"}, got)

	_, err = collectTargets(nil, filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}
