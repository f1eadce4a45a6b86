package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

type cliEnv struct {
	configPath string
	baseDir    string
}

// setupCLI writes a config file for one test. extra is appended verbatim.
func setupCLI(t *testing.T, extra ...string) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[telegram]
bot_token = "123:secret-token"
admin_ids = [1]

[paths]
data_dir = %q
log_dir = %q

[webhook]
secret = "hook-secret"
`, filepath.Join(base, "data"), filepath.Join(base, "logs")) + strings.Join(extra, "\n")
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{configPath: configPath, baseDir: base}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("doramabot %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestTitleAndEpisodeCommands(t *testing.T) {
	env := setupCLI(t)

	env.mustRun(t, "title", "add", "yl2024", "Your Lie", "--year", "2024", "--genre", "Drama")
	env.mustRun(t, "episode", "add", "YL2024", "1", "file-1", "--duration", "2700")
	env.mustRun(t, "episode", "add", "YL2024", "2", "file-2")

	out := env.mustRun(t, "title", "list")
	for _, want := range []string{"YL2024", "Your Lie", "2024"} {
		if !strings.Contains(out, want) {
			t.Fatalf("title list missing %q:\n%s", want, out)
		}
	}

	out = env.mustRun(t, "title", "list", "--json")
	if !strings.Contains(out, `"episodes": 2`) {
		t.Fatalf("expected JSON episode count, got:\n%s", out)
	}

	out = env.mustRun(t, "title", "show", "yl2024")
	if !strings.Contains(out, "file-2") || !strings.Contains(out, "45m0s") {
		t.Fatalf("title show missing episodes:\n%s", out)
	}

	if _, err := env.run(t, "episode", "add", "YL2024", "zero", "file-x"); err == nil {
		t.Fatal("expected an error for a non-numeric episode index")
	}

	env.mustRun(t, "title", "delete", "YL2024")
	if _, err := env.run(t, "title", "show", "YL2024"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestChannelAndRequestCommands(t *testing.T) {
	env := setupCLI(t)

	if _, err := env.run(t, "channel", "add", "--private", "--", "-100"); err == nil {
		t.Fatal("expected private channel without invite link to be rejected")
	}
	env.mustRun(t, "channel", "add", "--title", "Yopiq", "--private", "--invite-link", "https://t.me/+abc", "--", "-100")
	env.mustRun(t, "channel", "add", "--username", "doramalar", "--", "-200")

	out := env.mustRun(t, "channel", "list")
	if !strings.Contains(out, "Yopiq") || !strings.Contains(out, "https://t.me/doramalar") {
		t.Fatalf("channel list missing rows:\n%s", out)
	}

	out = env.mustRun(t, "request", "approve", "--", "42", "-100")
	if !strings.Contains(out, "Approved user 42 for Yopiq") {
		t.Fatalf("unexpected approve output:\n%s", out)
	}
	out = env.mustRun(t, "request", "list", "--status", "approved")
	if !strings.Contains(out, "APPROVED") {
		t.Fatalf("expected approved request listed:\n%s", out)
	}
	if _, err := env.run(t, "request", "approve", "--", "42", "-200"); err == nil {
		t.Fatal("expected approval on a public channel to fail")
	}
	if _, err := env.run(t, "request", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}

	env.mustRun(t, "channel", "disable", "--", "-200")
	out = env.mustRun(t, "channel", "list", "--json")
	if !strings.Contains(out, `"Active": false`) {
		t.Fatalf("expected disabled channel in JSON:\n%s", out)
	}
	env.mustRun(t, "channel", "delete", "--", "-200")
	if _, err := env.run(t, "channel", "delete", "--", "-200"); err == nil {
		t.Fatal("expected deleting a missing channel to fail")
	}
}

func TestCatalogRoundTripAndStats(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "title", "add", "NY2025", "New Year")
	env.mustRun(t, "episode", "add", "NY2025", "1", "file-ny-1")

	exportPath := filepath.Join(env.baseDir, "catalog.yaml")
	env.mustRun(t, "catalog", "export", "--output", exportPath)
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "file-ny-1") {
		t.Fatalf("export missing episode:\n%s", data)
	}

	env.mustRun(t, "title", "delete", "NY2025")
	out := env.mustRun(t, "catalog", "import", exportPath)
	if !strings.Contains(out, "Imported 1 titles, 1 episodes") {
		t.Fatalf("unexpected import output:\n%s", out)
	}

	out = env.mustRun(t, "stats")
	if !strings.Contains(out, "Titles") || !strings.Contains(out, "Admins") {
		t.Fatalf("stats output missing metrics:\n%s", out)
	}
}

func TestSettingsCommands(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "settings", "set", "welcome_message", "Xush kelibsiz!")
	out := env.mustRun(t, "settings", "show")
	if !strings.Contains(out, "Xush kelibsiz!") {
		t.Fatalf("settings show missing value:\n%s", out)
	}
	if _, err := env.run(t, "settings", "set", "unknown_key", "x"); err == nil {
		t.Fatal("expected unknown setting key to be rejected")
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupCLI(t)

	out := env.mustRun(t, "config", "show")
	if strings.Contains(out, "secret-token") || strings.Contains(out, "hook-secret") {
		t.Fatalf("config show leaked a secret:\n%s", out)
	}
	if !strings.Contains(out, redacted) {
		t.Fatalf("expected redacted marker:\n%s", out)
	}

	out = env.mustRun(t, "config", "validate")
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}

	target := filepath.Join(env.baseDir, "new", "config.toml")
	env.mustRun(t, "config", "init", "--path", target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLI(t)
	out := env.mustRun(t, "test-notify")
	if !strings.Contains(out, "Notifications disabled") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestCatalogWritesInvalidateRedisCache(t *testing.T) {
	server := miniredis.RunT(t)
	env := setupCLI(t, fmt.Sprintf("\n[redis]\naddr = %q\n", server.Addr()))

	env.mustRun(t, "title", "add", "YL2024", "Your Lie")
	cached := map[string]string{
		"doramabot:title:YL2024":    `{"Code":"YL2024","Name":"Your Lie"}`,
		"doramabot:episodes:YL2024": `[]`,
		"doramabot:channels:active": `[]`,
	}
	for key, value := range cached {
		if err := server.Set(key, value); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	env.mustRun(t, "episode", "add", "YL2024", "1", "file-1")
	if server.Exists("doramabot:episodes:YL2024") {
		t.Fatal("episode add left the cached episode list in place")
	}

	env.mustRun(t, "channel", "add", "--username", "doramalar", "--", "-1001")
	if server.Exists("doramabot:channels:active") {
		t.Fatal("channel add left the cached channel list in place")
	}

	env.mustRun(t, "title", "delete", "YL2024")
	if server.Exists("doramabot:title:YL2024") {
		t.Fatal("title delete left the cached title in place")
	}
	if _, err := env.run(t, "title", "show", "YL2024"); err == nil {
		t.Fatal("expected deleted title to be gone")
	}
}
