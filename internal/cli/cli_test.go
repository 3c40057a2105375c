package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"spilld/internal/config"
	"spilld/pkg/types"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := MainWithArgs(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func resolvedConfig(t *testing.T, args ...string) config.Config {
	t.Helper()
	code, out, errOut := runCLI(t, append([]string{"config"}, args...)...)
	if code != 0 {
		t.Fatalf("config exit %d: %s", code, errOut)
	}
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("yaml: %v\n%s", err, out)
	}
	return cfg
}

func TestMainWithArgs_NoArgs_ShowsUsageAndExit2(t *testing.T) {
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("expected exit code 2 for no args, got %d", code)
	}
}

func TestMainWithArgs_UnknownCommand_Exit1(t *testing.T) {
	code, _, errOut := runCLI(t, "wat")
	if code != 1 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("expected exit code 1 for unknown command, got %d (%q)", code, errOut)
	}
}

func TestConfigDefaults(t *testing.T) {
	withEnv(t, nil)
	cfg := resolvedConfig(t)
	if cfg.Addr != defaultAddr || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Spill != nil || cfg.SpillOnDemand != nil || cfg.SpillDeviceLimit != nil {
		t.Fatalf("unset flags must stay unset: %+v", cfg)
	}
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spilld.yaml")
	body := "addr: \":9000\"\nspill: false\nspill_device_limit: 100\ndevice_capacity: 4096\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	withEnv(t, map[string]string{
		config.EnvSpill:            "on",
		config.EnvSpillDeviceLimit: "200",
	})
	cfg := resolvedConfig(t, "--config", path, "--spill-device-limit", "300", "--cors-origins", "a, b,,c", "--rate-limit", "2.5")

	if cfg.Addr != ":9000" || cfg.LogLevel != "debug" || cfg.DeviceCapacity != 4096 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Spill == nil || !*cfg.Spill {
		t.Fatalf("environment should override the file")
	}
	if cfg.SpillDeviceLimit == nil || *cfg.SpillDeviceLimit != 300 {
		t.Fatalf("flags should override the environment")
	}
	if cfg.RateLimit != 2.5 || cfg.RateBurst != 0 {
		t.Fatalf("rate limit = %v/%d", cfg.RateLimit, cfg.RateBurst)
	}
	if got := strings.Join(cfg.CORSOrigins, "|"); got != "a|b|c" {
		t.Fatalf("cors origins = %q", got)
	}
}

func TestConfigRejectsInvalidValues(t *testing.T) {
	withEnv(t, map[string]string{config.EnvSpill: "maybe"})
	if code, _, errOut := runCLI(t, "config"); code != 1 || !strings.Contains(errOut, config.EnvSpill) {
		t.Fatalf("expected env error, got %d %q", code, errOut)
	}
	withEnv(t, nil)
	if code, _, _ := runCLI(t, "config", "--device-capacity", "-1"); code != 1 {
		t.Fatalf("negative capacity should be rejected")
	}
	if code, _, _ := runCLI(t, "config", "--rate-limit", "-2"); code != 1 {
		t.Fatalf("negative rate limit should be rejected")
	}
	if code, _, _ := runCLI(t, "config", "--config", filepath.Join(t.TempDir(), "x.ini")); code != 1 {
		t.Fatalf("missing config file should be rejected")
	}
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(types.StatusResponse{Enabled: true, Buffers: 4})
	}))
	defer srv.Close()

	code, out, errOut := runCLI(t, "status", "--server", srv.URL)
	if code != 0 {
		t.Fatalf("status exit %d: %s", code, errOut)
	}
	var st types.StatusResponse
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !st.Enabled || st.Buffers != 4 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestStatusCommandServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "down", Code: 503})
	}))
	defer srv.Close()
	code, _, errOut := runCLI(t, "status", "--server", srv.URL)
	if code != 1 || !strings.Contains(errOut, "down") {
		t.Fatalf("expected failure mentioning the server error, got %d %q", code, errOut)
	}
}

func TestBaseURL(t *testing.T) {
	cases := map[string]string{
		":8080":                 "http://127.0.0.1:8080",
		"localhost:9000":        "http://localhost:9000",
		"http://example.com:1/": "http://example.com:1",
		"https://example.com:2": "https://example.com:2",
	}
	for in, want := range cases {
		if got := baseURL(in); got != want {
			t.Fatalf("baseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", true)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
	buf.Reset()
	l = newLogger(&buf, "bogus", false)
	l.Info().Msg("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Fatalf("unknown levels fall back to info: %q", buf.String())
	}
}
