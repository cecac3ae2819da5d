package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	archiveDir string
	sourceDir  string
	stateDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "keeper.toml"),
		archiveDir: filepath.Join(base, "archive"),
		sourceDir:  filepath.Join(base, "source"),
		stateDir:   filepath.Join(base, "state"),
	}
	for _, dir := range []string{env.archiveDir, env.sourceDir, env.stateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	content := fmt.Sprintf(`[paths]
archive_root = %q
quarantine_root = %q
state_dir = %q
log_dir = %q
`,
		env.archiveDir,
		filepath.Join(base, "quarantine"),
		env.stateDir,
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

// writeInputManifest writes a discovery-style manifest for one matched
// source/archive pair and one source-only duplicate of the same content.
func writeInputManifest(t *testing.T, env *cliTestEnv) string {
	t.Helper()

	content := []byte("pipeline content")
	canonical := filepath.Join(env.archiveDir, "2026", "a.mkv")
	sourceA := filepath.Join(env.sourceDir, "a.mkv")
	sourceB := filepath.Join(env.sourceDir, "b.mkv")
	for _, path := range []string{canonical, sourceA, sourceB} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	manifestPath := filepath.Join(env.stateDir, "input.csv")
	manifestBody := "source_path,archive_path,size_bytes,content_digest\n" +
		fmt.Sprintf("%s,%s,%d,\n", sourceA, canonical, len(content)) +
		fmt.Sprintf("%s,,%d,\n", sourceB, len(content))
	if err := os.WriteFile(manifestPath, []byte(manifestBody), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return manifestPath
}

func TestVerifyResolveSweepPipeline(t *testing.T) {
	env := setupCLITestEnv(t)
	manifestPath := writeInputManifest(t, env)

	out, err := runCLI(t, env, "verify", "--input", manifestPath)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	requireContains(t, out, "1 verified")
	requireContains(t, out, "1 unverified")

	verifiedPath := filepath.Join(env.stateDir, "verified.csv")
	out, err = runCLI(t, env, "resolve", "--input", verifiedPath)
	if err != nil {
		t.Fatalf("resolve: %v\n%s", err, out)
	}
	requireContains(t, out, "1 kept")

	out, err = runCLI(t, env, "sweep", "--input", verifiedPath)
	if err != nil {
		t.Fatalf("sweep: %v\n%s", err, out)
	}
	requireContains(t, out, "1 kept")

	out, err = runCLI(t, env, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v\n%s", err, out)
	}
	for _, stage := range []string{"verify", "resolve", "sweep"} {
		requireContains(t, out, stage)
	}

	out, err = runCLI(t, env, "groups", "stats")
	if err != nil {
		t.Fatalf("groups stats: %v\n%s", err, out)
	}
	requireContains(t, out, "groups=1")
}

func TestSweepRefusesMismatchedRunID(t *testing.T) {
	env := setupCLITestEnv(t)
	manifestPath := writeInputManifest(t, env)

	if out, err := runCLI(t, env, "verify", "--input", manifestPath); err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}

	verifiedPath := filepath.Join(env.stateDir, "verified.csv")
	_, err := runCLI(t, env, "sweep", "--input", verifiedPath, "--expected-run-id", "not-the-run")
	if err == nil {
		t.Fatal("sweep accepted a mismatched run id")
	}
}

func TestVerifyRequiresInputFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "verify"); err == nil {
		t.Fatal("verify ran without --input")
	}
}
