package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	resultsFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

// Submission carries the network timings of one analysis upload.
type Submission struct {
	Provider    string
	RequestID   string
	StatusCode  int
	UploadKB    float64
	DNSTimeMs   float64
	TLSTimeMs   float64
	TTFBMs      float64
	TotalTimeMs float64
	ConnReused  bool
	TLSProto    string
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: SKINSCAN_LOG_PATH environment variable
	if envPath := os.Getenv("SKINSCAN_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	resultsFile, err = os.OpenFile(filepath.Join(dir, "results_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if resultsFile != nil {
		resultsFile.Close()
		resultsFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(provider, endpoint, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("endpoint", endpoint).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(scans int) {
	if !logReady {
		return
	}
	diagLog.Info().Int("scans", scans).Msg("session_end")
}

func Phase(from, to, requestID string) {
	if !logReady {
		return
	}
	ev := diagLog.Info().Str("from", from).Str("to", to)
	if requestID != "" {
		ev = ev.Str("request", requestID)
	}
	ev.Msg("phase")
}

func SubmissionMetrics(s Submission) {
	if !logReady {
		return
	}

	connStatus := "new"
	if s.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("provider", s.Provider).
		Str("request", s.RequestID).
		Int("status", s.StatusCode).
		Str("conn", connStatus)
	if s.TLSProto != "" {
		ev = ev.Str("tls_proto", s.TLSProto)
	}
	ev.Float64("upload_kb", s.UploadKB).
		Float64("dns_ms", s.DNSTimeMs).
		Float64("tls_ms", s.TLSTimeMs).
		Float64("ttfb_ms", s.TTFBMs).
		Float64("total_ms", s.TotalTimeMs).
		Msg("submission")
}

// Failure records a user-visible failure with its taxonomy kind.
func Failure(kind string, err error) {
	if !logReady {
		return
	}
	diagLog.Error().Str("kind", kind).Err(err).Msg("failure")
}

func StaleResponse(requestID string) {
	if !logReady {
		return
	}
	diagLog.Warn().Str("request", requestID).Msg("stale_response_discarded")
}

func ScoreOutOfRange(requestID string, score int) {
	if !logReady {
		return
	}
	diagLog.Warn().Str("request", requestID).Int("score", score).Msg("score_out_of_range")
}

// AnalysisResult appends one tab-separated line to results_log.txt and
// mirrors it into the diagnostics log.
func AnalysisResult(requestID, skinType string, score, chapter int, conditions []string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("request", requestID).
		Str("skin_type", skinType).
		Int("score", score).
		Int("chapter", chapter).
		Strs("conditions", conditions).
		Msg("analysis_result")

	logMu.Lock()
	defer logMu.Unlock()
	if resultsFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%d\t%d\t%v\n",
		time.Now().Format("2006-01-02 15:04:05"), pid, skinType, score, chapter, conditions)
	resultsFile.WriteString(line)
}
