package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"skinscan/beep"
	"skinscan/camera"
	"skinscan/config"
	"skinscan/doctor"
	"skinscan/log"
	"skinscan/metrics"
	"skinscan/shutdown"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	endpointFlag := flag.String("endpoint", "", "Analysis endpoint URL (default $SKINSCAN_ENDPOINT or "+config.DefaultEndpoint+")")
	deviceFlag := flag.String("device", "", "Use named camera device")
	setupFlag := flag.Bool("setup", false, "Select camera device interactively")
	mockFlag := flag.Bool("mock", false, "Use the built-in mock analyzer instead of the endpoint")
	guestFlag := flag.Bool("guest", false, "Skip sign-in and scan as a guest")
	metricsFlag := flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	timeoutFlag := flag.Duration("timeout", 0, "Analysis request timeout (default $SKINSCAN_SUBMIT_TIMEOUT or 60s)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	quietFlag := flag.Bool("quiet", false, "Disable feedback sounds")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven); argument is the image the fake camera serves")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	guiFlag := flag.Bool("gui", false, "Open the desktop window (requires a -tags gui build)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("skinscan %s\n", version)
		return 0
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading .env: %v\n", err)
		return 1
	}
	if *endpointFlag != "" {
		cfg.Endpoint = *endpointFlag
	}
	if *deviceFlag != "" {
		cfg.Camera = *deviceFlag
	}
	if *timeoutFlag > 0 {
		cfg.SubmitTimeout = *timeoutFlag
	}
	if *metricsFlag != "" {
		cfg.MetricsAddr = *metricsFlag
	}
	cfg.Mock = cfg.Mock || *mockFlag
	cfg.Guest = cfg.Guest || *guestFlag
	if *quietFlag {
		beep.Disable()
	}

	if *doctorFlag {
		camCtx, device := openCamera(cfg, false)
		if camCtx != nil {
			defer camCtx.Close()
		}
		return doctor.Run(doctor.Options{
			Camera:    camCtx,
			Device:    device,
			Endpoint:  cfg.Endpoint,
			Clipboard: true,
		})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if cfg.MetricsAddr != "" {
		exp := metrics.NewExporter(cfg.MetricsAddr)
		go func() {
			if err := exp.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server: %v", err)
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			exp.Shutdown(ctx)
		}()
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: skinscan -test <image-file>")
			return 1
		}
		return runTestMode(cfg, args[0])
	}

	camCtx, device := openCamera(cfg, *setupFlag)
	d := newDeps(cfg, camCtx, device)
	defer d.close()

	if err := d.restoreUser(); err != nil {
		log.Warnf("stored token rejected: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	log.SessionStart(d.client.Name(), d.endpointLabel(), d.deviceLabel())
	go beep.Init()

	if *guiFlag {
		return runGUI(d)
	}
	return runTUI(d)
}

// openCamera returns a nil context when no driver is available; scanning
// then falls back to uploads.
func openCamera(cfg *config.Config, setup bool) (camera.Context, *camera.DeviceInfo) {
	camCtx, err := camera.NewContext()
	if err != nil {
		log.Warnf("camera driver: %v", err)
		return nil, nil
	}

	var device *camera.DeviceInfo
	switch {
	case cfg.Camera != "":
		device, err = camera.FindDevice(camCtx, cfg.Camera)
		if err != nil {
			log.Warnf("camera %q not found, using default: %v", cfg.Camera, err)
			fmt.Printf("Warning: camera %q not found, using default\n", cfg.Camera)
		}
	case setup:
		device, err = camera.SelectDevice(camCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default camera")
		}
	}
	return camCtx, device
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func runTUI(d *deps) int {
	bridge := &tuiBridge{}
	sess := d.newSession(bridge, bridge)
	p := tea.NewProgram(newTUIModel(d, sess), tea.WithAltScreen())
	bridge.p = p

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	sess.Close()
	log.SessionEnd(sess.Scans())
	if err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
