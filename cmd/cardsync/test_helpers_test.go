package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cardsync/internal/catalog"
	"cardsync/internal/config"
	"cardsync/internal/testsupport"
)

const cliExport = `{
  "name": "cards",
  "messages": [
    {"id": 100, "type": "message", "date": "2025-03-12T10:00:00", "date_unixtime": "1741773600",
     "text": "Red Dragon\n1492-1497"},
    {"id": 101, "type": "message", "date": "2025-04-02T18:30:00", "text": "Blue Whale"}
  ]
}`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	exportPath := filepath.Join(base, "export", "result.json")
	if err := os.MkdirAll(filepath.Dir(exportPath), 0o755); err != nil {
		t.Fatalf("mkdir export dir: %v", err)
	}
	if err := os.WriteFile(exportPath, []byte(cliExport), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	cfg.Timeline.Source = "export"
	cfg.Timeline.ExportPath = exportPath

	testsupport.WriteCatalog(t, cfg.Catalog.Path,
		catalog.Item{ID: 1, Name: "Red Dragon"},
		catalog.Item{ID: 2, Name: "Green Meadow"},
		catalog.Item{ID: 3, Name: "Blue Whale"},
	)

	configPath := filepath.Join(base, "cardsync.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
