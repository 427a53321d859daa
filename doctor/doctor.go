// Package doctor runs the `-doctor` diagnostics: camera, encoder, analysis
// endpoint and clipboard.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"skinscan/analysis"
	"skinscan/camera"
	"skinscan/clipboard"
	"skinscan/encoder"
	"skinscan/shutdown"
)

const frameWait = 3 * time.Second

type Options struct {
	Camera   camera.Context // nil skips straight to a camera failure
	Device   *camera.DeviceInfo
	Endpoint string
	Timeout  time.Duration

	// Clipboard is checked only when set; headless hosts usually lack
	// xclip/wl-copy and that is not fatal for scanning.
	Clipboard bool

	Out io.Writer
}

type checker struct {
	opts  Options
	out   io.Writer
	step  int
	total int
	still image.Image
}

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	return RunContext(ctx, opts)
}

func RunContext(ctx context.Context, opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	c := &checker{opts: opts, out: opts.Out, total: 3}
	if opts.Clipboard {
		c.total++
	}

	fmt.Fprintln(c.out, "skinscan doctor - system diagnostics")
	fmt.Fprintln(c.out, "====================================")

	allPass := c.checkCamera(ctx)
	if !c.checkEncoder() {
		allPass = false
	}
	if !c.checkEndpoint() {
		allPass = false
	}
	if opts.Clipboard && !c.checkClipboard() {
		allPass = false
	}

	fmt.Fprintln(c.out)
	if allPass {
		fmt.Fprintln(c.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(c.out, "Some checks failed. See details above.")
	return 1
}

func (c *checker) header(title string) {
	c.step++
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "[%d/%d] %s\n", c.step, c.total, title)
}

func (c *checker) pass(format string, args ...any) bool {
	fmt.Fprintf(c.out, "  PASS: "+format+"\n", args...)
	return true
}

func (c *checker) fail(format string, args ...any) bool {
	fmt.Fprintf(c.out, "  FAIL: "+format+"\n", args...)
	return false
}

func (c *checker) checkCamera(ctx context.Context) bool {
	c.header("Camera")

	if c.opts.Camera == nil {
		return c.fail("no camera driver in this build (rebuild with -tags gocv)")
	}
	devices, err := c.opts.Camera.Devices()
	if err != nil {
		return c.fail("cannot list cameras: %v", err)
	}
	fmt.Fprintf(c.out, "  %d camera(s) found\n", len(devices))
	for _, d := range devices {
		tag := ""
		if camera.IsVirtual(d.Name) {
			tag = " [virtual]"
		}
		fmt.Fprintf(c.out, "    - %s%s\n", d.Name, tag)
	}

	src := camera.NewSource(c.opts.Camera, c.opts.Device, camera.DefaultConfig)
	h, err := src.Acquire(ctx)
	if err != nil {
		if errors.Is(err, camera.ErrDeviceDenied) {
			fmt.Fprintln(c.out, "  Fix with: sudo usermod -aG video $USER (then log in again)")
		}
		return c.fail("cannot open camera: %v", err)
	}
	defer src.Release(h)

	deadline := time.Now().Add(frameWait)
	for {
		img, err := src.CaptureStill(h)
		if err == nil {
			c.still = img
			b := img.Bounds()
			return c.pass("%s delivered a %dx%d frame", h.DeviceName(), b.Dx(), b.Dy())
		}
		if !errors.Is(err, camera.ErrNotReady) || time.Now().After(deadline) {
			return c.fail("no frame from %s: %v", h.DeviceName(), err)
		}
		select {
		case <-ctx.Done():
			return c.fail("interrupted")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (c *checker) checkEncoder() bool {
	c.header("JPEG encoding")

	if c.still == nil {
		return c.fail("skipped, no camera frame")
	}
	enc := encoder.New(encoder.NewPreviews())
	start := time.Now()
	img, err := enc.FromStill(c.still)
	if err != nil {
		return c.fail("encode: %v", err)
	}
	defer enc.Revoke(img.Preview)
	return c.pass("%.1f KB in %s", float64(img.Size)/1024, time.Since(start).Round(time.Millisecond))
}

func (c *checker) checkEndpoint() bool {
	c.header("Analysis endpoint")

	client := analysis.NewHTTP(c.opts.Endpoint, c.opts.Timeout)
	fmt.Fprintf(c.out, "  %s\n", client.Endpoint())
	rtt, err := client.Probe()
	if err != nil {
		fmt.Fprintln(c.out, "  Set SKINSCAN_ENDPOINT or -endpoint if the service runs elsewhere")
		return c.fail("unreachable: %v", err)
	}
	return c.pass("reachable in %s", rtt.Round(time.Millisecond))
}

func (c *checker) checkClipboard() bool {
	c.header("Clipboard copy")

	if !clipboard.Available() {
		return c.fail("%v (install xclip, xsel or wl-clipboard)", clipboard.ErrUnsupported)
	}

	testStr := fmt.Sprintf("skinscan-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return c.fail("clipboard %s failed: %v", res.phase, res.err)
		}
		if res.readback != testStr {
			return c.fail("clipboard mismatch: wrote %q, got %q", testStr, res.readback)
		}
		return c.pass("clipboard write/read verified")
	case <-time.After(3 * time.Second):
		return c.fail("clipboard timed out (clipboard tool hung - compositor not accessible?)")
	}
}
