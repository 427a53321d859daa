//go:build integration

package test_test

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("SKINSCAN_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "SKINSCAN_TEST_BIN not set; build with: go build -o /tmp/skinscan . && SKINSCAN_TEST_BIN=/tmp/skinscan go test -tags integration ./test")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func writeFace(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 96, 72))
	for y := 0; y < 72; y++ {
		for x := 0; x < 96; x++ {
			img.Set(x, y, color.RGBA{uint8(180 + x%40), uint8(140 + y%30), 120, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "face.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func backend(t *testing.T, status int, body string) (string, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		hits.Add(1)
		f, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		io.Copy(io.Discard, f)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL, &hits
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runSkinscan(t *testing.T, stdin string, args ...string) (stdout, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-quiet"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "SKINSCAN_TOKEN=")

	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("skinscan exited with error: %v\noutput: %s", err, out)
	}
	return string(out), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

const payload = `{"predicted_skin_type":"Combination","skin_conditions":{"Redness":0.4,"Acne":0.9,"Pores":0.1},"overall_skin_condition_score":71.5,"recommended_chapter":"brightening-glow"}`

func TestCameraScan(t *testing.T) {
	url, hits := backend(t, http.StatusOK, payload)
	out, logDir := runSkinscan(t, cmds("CAPTURE", "SNAP", "WAIT", "VIEW", "QUIT"),
		"-test", "-guest", "-endpoint", url, writeFace(t))

	for _, want := range []string{
		"PHASE initial capturing",
		"RESULT Combination 72 5 Acne,Redness,Pores",
		"NAVIGATE /chapters/5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1", hits.Load())
	}

	results := readLog(t, logDir, "results_log.txt")
	if !strings.Contains(results, "Combination\t72\t5") {
		t.Errorf("results_log.txt = %q", results)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, ev := range []string{"session_start", "submission", "analysis_result", "session_end"} {
		if !strings.Contains(diag, ev) {
			t.Errorf("diagnostics_log.txt missing %s", ev)
		}
	}
}

func TestUploadScan(t *testing.T) {
	url, _ := backend(t, http.StatusOK, payload)
	face := writeFace(t)
	out, _ := runSkinscan(t, cmds("UPLOAD "+face, "WAIT", "STATE", "QUIT"),
		"-test", "-guest", "-endpoint", url, face)

	if strings.Contains(out, "PHASE initial capturing") {
		t.Errorf("upload should not start the camera:\n%s", out)
	}
	if !strings.Contains(out, "STATE complete progress=100 stream=false preview=true") {
		t.Errorf("unexpected final state:\n%s", out)
	}
}

func TestServerFailure(t *testing.T) {
	url, _ := backend(t, http.StatusBadGateway, `{"error":"upstream"}`)
	out, logDir := runSkinscan(t, cmds("CAPTURE", "SNAP", "WAIT", "STATE", "QUIT"),
		"-test", "-guest", "-endpoint", url, writeFace(t))

	if !strings.Contains(out, "FAILED ServerError") {
		t.Errorf("stdout missing failure:\n%s", out)
	}
	if !strings.Contains(out, "STATE initial") {
		t.Errorf("session did not return to initial:\n%s", out)
	}
	if readLog(t, logDir, "results_log.txt") != "" {
		t.Error("failure should not be written to results_log.txt")
	}
	if !strings.Contains(readLog(t, logDir, "diagnostics_log.txt"), "ServerError") {
		t.Error("diagnostics_log.txt missing failure kind")
	}
}

func TestMockAnalyzer(t *testing.T) {
	out, _ := runSkinscan(t, cmds("CAPTURE", "SNAP", "WAIT", "QUIT"),
		"-test", "-guest", "-mock", writeFace(t))
	if !strings.Contains(out, "RESULT ") {
		t.Errorf("mock analyzer produced no result:\n%s", out)
	}
}

func TestSignInRequired(t *testing.T) {
	url, hits := backend(t, http.StatusOK, payload)
	out, _ := runSkinscan(t, cmds("QUIT"), "-test", "-endpoint", url, writeFace(t))
	if !strings.HasPrefix(out, "NAVIGATE /signin\nSIGNED_OUT\n") {
		t.Errorf("expected sign-in redirect, got:\n%s", out)
	}
	if hits.Load() != 0 {
		t.Errorf("backend hits = %d, want 0", hits.Load())
	}
}

func TestVersion(t *testing.T) {
	out, err := exec.Command(testBinary, "-version").Output()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "skinscan ") {
		t.Errorf("version output = %q", out)
	}
}
