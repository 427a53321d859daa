package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"skinscan/auth"
	"skinscan/beep"
	"skinscan/camera"
	"skinscan/config"
	"skinscan/encoder"
	"skinscan/log"
	"skinscan/nav"
	"skinscan/result"
	"skinscan/session"
)

func runTestMode(cfg *config.Config, imagePath string) int {
	beep.Disable()

	fakeCtx, err := camera.LoadFakeContext(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading image: %v\n", err)
		return 1
	}

	d := newDeps(cfg, fakeCtx, nil)
	defer d.close()
	if err := d.restoreUser(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	log.SessionStart(d.client.Name(), d.endpointLabel(), "fake:"+imagePath)
	return runScript(d, os.Stdin, os.Stdout)
}

// scriptOut serializes lines from the script loop and the session's
// goroutines.
type scriptOut struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *scriptOut) printf(format string, args ...any) {
	o.mu.Lock()
	fmt.Fprintf(o.w, format+"\n", args...)
	o.mu.Unlock()
}

// scriptSink prints session events, one line each.
type scriptSink struct{ out *scriptOut }

func (s scriptSink) PhaseChanged(from, to session.Phase) { s.out.printf("PHASE %s %s", from, to) }
func (s scriptSink) Progress(pct int)                    { s.out.printf("PROGRESS %d", pct) }

func (s scriptSink) Completed(r result.Result) {
	s.out.printf("RESULT %s %d %d %s", r.SkinType, r.SkinScore, r.RecommendedChapter, strings.Join(r.Conditions, ","))
}

func (s scriptSink) Failed(err error, msg string) {
	s.out.printf("FAILED %s %s", session.KindOf(err), msg)
}

func (s scriptSink) NavigateTo(dest string, params map[string]string) {
	s.out.printf("NAVIGATE %s", nav.Path(dest, params))
}

// runScript executes one command per line:
//
//	CAPTURE, SNAP, CANCEL, RESET, VIEW, UPLOAD <path>, SIGNIN <token>,
//	SIGNOUT, STATE, WAIT, SLEEP <ms>, QUIT
func runScript(d *deps, in io.Reader, w io.Writer) int {
	out := &scriptOut{w: w}
	sink := scriptSink{out: out}
	sess := d.newSession(sink, sink)
	defer func() {
		sess.Close()
		log.SessionEnd(sess.Scans())
	}()

	if !nav.Guard(d.auth, sink, nav.Scan) {
		out.printf("SIGNED_OUT")
	}

	rejected := func(err error) {
		switch {
		case err == nil:
		case errors.Is(err, session.ErrInvalidTransition),
			errors.Is(err, session.ErrCanceled),
			errors.Is(err, session.ErrClosed),
			session.KindOf(err) == session.KindNotReady:
			out.printf("REJECTED %v", err)
		}
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
		case "CAPTURE":
			rejected(sess.StartCamera(context.Background()))
		case "SNAP":
			rejected(sess.TakePhoto())
		case "CANCEL":
			rejected(sess.Cancel())
		case "RESET":
			rejected(sess.Reset())
		case "VIEW":
			rejected(sess.ViewRecommendations())
		case "UPLOAD":
			f, err := encoder.OpenFile(arg)
			if err != nil {
				out.printf("ERROR %v", err)
				continue
			}
			rejected(sess.Upload(f))
		case "SIGNIN":
			u, err := auth.FromToken(arg, d.cfg.TokenSecret)
			if err != nil {
				out.printf("ERROR %v", err)
				continue
			}
			d.auth.SignIn(u)
			out.printf("SIGNED_IN %s", u.Display())
		case "SIGNOUT":
			d.auth.SignOut()
		case "STATE":
			st := sess.State()
			out.printf("STATE %s progress=%d stream=%t preview=%t", st.Phase, st.Progress, st.StreamHeld, st.Preview != encoder.NoHandle)
		case "WAIT":
			sess.Wait()
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			return 0
		default:
			out.printf("ERROR unknown command %q", cmd)
		}
	}
	return 0
}
