package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFileParsesAndRespectsExistingValues(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "env")
	content := `
# comment
export RB_FOO=bar
RB_QUOTED="hello world"
RB_SINGLE='x y'
RB_MISMATCHED="open
RB_URL=http://host/?a=b
INVALID_LINE
`
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("RB_FOO", "existing")
	for _, k := range []string{"RB_QUOTED", "RB_SINGLE", "RB_MISMATCHED", "RB_URL"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	if err := loadEnvFile(envPath); err != nil {
		t.Fatalf("load env file: %v", err)
	}

	want := map[string]string{
		"RB_FOO":        "existing",
		"RB_QUOTED":     "hello world",
		"RB_SINGLE":     "x y",
		"RB_MISMATCHED": `"open`,
		"RB_URL":        "http://host/?a=b",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Fatalf("%s: got %q, want %q", k, got, v)
		}
	}
}

func TestLoadEnvFilesPrefersExplicitPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(".env", []byte("RB_SOURCE=dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	explicit := filepath.Join(dir, "relaybot.env")
	if err := os.WriteFile(explicit, []byte("RB_SOURCE=explicit\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RB_SOURCE", "")
	_ = os.Unsetenv("RB_SOURCE")

	t.Setenv(EnvFileVar, explicit)
	if err := loadEnvFiles(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("RB_SOURCE"); got != "explicit" {
		t.Fatalf("expected the explicit file to win, got %q", got)
	}
}

func TestLoadEnvFilesFallsBackToDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvFileVar, "")
	t.Setenv("RB_DOTENV", "")
	_ = os.Unsetenv("RB_DOTENV")

	if err := loadEnvFiles(); err != nil {
		t.Fatalf("missing .env must not fail: %v", err)
	}
	if err := os.WriteFile(".env", []byte("RB_DOTENV=1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadEnvFiles(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("RB_DOTENV"); got != "1" {
		t.Fatalf("expected .env loaded, got %q", got)
	}
}

func TestLoadEnvFilesMissingExplicitFile(t *testing.T) {
	t.Setenv(EnvFileVar, filepath.Join(t.TempDir(), "absent.env"))
	if err := loadEnvFiles(); err == nil {
		t.Fatal("expected an error for a missing explicit env file")
	}
}
