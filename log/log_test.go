package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag absolute", "/tmp/scanlog", "", "/tmp/scanlog"},
		{"flag relative", "logs", "", filepath.Join(wd, "logs")},
		{"flag beats env", "/tmp/a", "/tmp/b", "/tmp/a"},
		{"env absolute", "", "/tmp/skinscan-env-log", "/tmp/skinscan-env-log"},
		{"env relative", "", "envlogs", filepath.Join(wd, "envlogs")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SKINSCAN_LOG_PATH", tt.env)
			got, err := ResolveDir(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("SKINSCAN_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, appName) {
		t.Errorf("default dir %q does not mention %s", got, appName)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "results_log.txt"} {
		if _, err := os.Stat(filepath.Join(tmp, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestAnalysisResultLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	AnalysisResult("req-1", "Oily", 84, 3, []string{"Acne", "Dryness"})

	data, err := os.ReadFile(filepath.Join(tmp, "results_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	for _, want := range []string{"Oily", "\t84\t", "\t3\t", "Acne Dryness"} {
		if !strings.Contains(line, want) {
			t.Errorf("results_log.txt missing %q, got: %q", want, line)
		}
	}
}

func TestDiagnosticEvents(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Phase("initial", "processing", "req-7")
	StaleResponse("req-6")
	Failure("ServerError", errors.New("analysis server returned 500"))
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"phase", "req-7", "stale_response_discarded", "req-6", "ServerError"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestCallsBeforeInitAreNoops(t *testing.T) {
	Close()
	Info("nothing")
	AnalysisResult("r", "Dry", 1, 1, nil)
	SubmissionMetrics(Submission{Provider: "http"})
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
