package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"skinscan/analysis"
	"skinscan/auth"
	"skinscan/camera"
	"skinscan/encoder"
	"skinscan/nav"
	"skinscan/result"
)

const protectionPayload = `{"predicted_skin_type":"Oily","skin_conditions":{"Acne":0.7,"Dryness":0.2},"overall_skin_condition_score":83.6,"recommended_chapter":"protection"}`

type event struct {
	kind string
	from Phase
	to   Phase
	pct  int
	err  error
	res  result.Result
}

type recordingSink struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingSink) add(e event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) PhaseChanged(from, to Phase) {
	r.add(event{kind: "phase", from: from, to: to})
}

func (r *recordingSink) Progress(pct int) {
	r.add(event{kind: "progress", pct: pct})
}

func (r *recordingSink) Completed(res result.Result) {
	r.add(event{kind: "completed", res: res})
}

func (r *recordingSink) Failed(err error, _ string) {
	r.add(event{kind: "failed", err: err})
}

func (r *recordingSink) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingSink) count(kind string) int {
	n := 0
	for _, e := range r.all() {
		if e.kind == kind {
			n++
		}
	}
	return n
}

// scriptedClient holds every submission until the test answers it.
type scriptedClient struct {
	mu      sync.Mutex
	pending []chan reply
	calls   int
	stop    chan struct{}
}

type reply struct {
	payload string
	err     error
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{stop: make(chan struct{})}
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Submit(ctx context.Context, _ *encoder.CapturedImage) (*analysis.Response, error) {
	ch := make(chan reply, 1)
	c.mu.Lock()
	c.pending = append(c.pending, ch)
	c.calls++
	c.mu.Unlock()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return &analysis.Response{Payload: []byte(r.payload), StatusCode: 200}, nil
	case <-c.stop:
		return nil, &analysis.NetworkError{Err: errors.New("client stopped")}
	case <-ctx.Done():
		return nil, &analysis.NetworkError{Err: ctx.Err()}
	}
}

func (c *scriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *scriptedClient) waitCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.Calls() < n {
		if time.Now().After(deadline) {
			t.Fatalf("submissions = %d, want %d", c.Calls(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

// answer replies to the oldest unanswered submission, waiting for one to
// arrive if needed.
func (c *scriptedClient) answer(t *testing.T, r reply) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			ch := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()
			ch <- r
			return
		}
		c.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatal("no submission arrived")
		}
		time.Sleep(time.Millisecond)
	}
}

type harness struct {
	cam      *camera.FakeContext
	src      *camera.Source
	enc      *encoder.Encoder
	client   *scriptedClient
	router   *nav.Recorder
	sink     *recordingSink
	sess     *Session
	previews *encoder.Previews
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		cam:      camera.NewFakeContext(camera.SolidFrame(32, 24, color.RGBA{180, 140, 120, 255})),
		previews: encoder.NewPreviews(),
		client:   newScriptedClient(),
		router:   &nav.Recorder{},
		sink:     &recordingSink{},
	}
	h.src = camera.NewSource(h.cam, nil, camera.DefaultConfig)
	h.enc = encoder.New(h.previews)
	cfg := Config{
		Source:           h.src,
		Encoder:          h.enc,
		Client:           h.client,
		Router:           h.router,
		Sink:             h.sink,
		ProgressInterval: time.Hour,
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.sess = New(cfg)
	t.Cleanup(func() {
		h.sess.Close()
		close(h.client.stop)
		h.sess.Wait()
	})
	return h
}

func pngFile(t *testing.T) encoder.File {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, camera.SolidFrame(8, 8, color.White)); err != nil {
		t.Fatal(err)
	}
	return encoder.File{Name: "face.png", Type: "image/png", Data: buf.Bytes()}
}

// settle answers the oldest submission and waits for it to be handled.
func (h *harness) settle(t *testing.T, r reply) {
	t.Helper()
	h.client.answer(t, r)
	h.sess.Wait()
}

func TestCameraHappyPath(t *testing.T) {
	h := newHarness(t)

	if err := h.sess.StartCamera(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := h.sess.State(); st.Phase != Capturing || !st.StreamHeld {
		t.Fatalf("state = %+v, want capturing with stream", st)
	}
	if h.src.Outstanding() != 1 {
		t.Fatalf("outstanding = %d", h.src.Outstanding())
	}

	if err := h.sess.TakePhoto(); err != nil {
		t.Fatal(err)
	}
	st := h.sess.State()
	if st.Phase != Processing || st.StreamHeld || st.Preview == encoder.NoHandle {
		t.Fatalf("state = %+v, want processing with preview and no stream", st)
	}
	if h.cam.Stops() != 1 || h.src.Outstanding() != 0 {
		t.Errorf("stream not released before submission: stops=%d", h.cam.Stops())
	}

	h.settle(t, reply{payload: protectionPayload})

	st = h.sess.State()
	if st.Phase != Complete {
		t.Fatalf("phase = %s, want complete", st.Phase)
	}
	want := result.Result{SkinType: "Oily", Conditions: []string{"Acne", "Dryness"}, SkinScore: 84, RecommendedChapter: 3}
	if st.Result == nil || fmt.Sprint(*st.Result) != fmt.Sprint(want) {
		t.Errorf("result = %+v, want %+v", st.Result, want)
	}
	if st.Progress != ProgressDone {
		t.Errorf("progress = %d, want 100", st.Progress)
	}

	for i := 0; i < 3; i++ {
		if err := h.sess.ViewRecommendations(); err != nil {
			t.Fatal(err)
		}
	}
	calls := h.router.Calls()
	if len(calls) != 1 || calls[0].Dest != nav.Chapter || calls[0].Params["chapter"] != "3" {
		t.Errorf("navigation = %+v, want one call to chapter 3", calls)
	}
	if h.client.Calls() != 1 {
		t.Errorf("submissions = %d, want 1", h.client.Calls())
	}
}

func TestCameraDenied(t *testing.T) {
	h := newHarness(t)
	h.cam.FailOpen(camera.ErrDeviceDenied)

	err := h.sess.StartCamera(context.Background())
	if !errors.Is(err, camera.ErrDeviceDenied) {
		t.Fatalf("err = %v, want ErrDeviceDenied", err)
	}
	st := h.sess.State()
	if st.Phase != Initial || st.StreamHeld {
		t.Errorf("state = %+v", st)
	}
	if KindOf(st.Err) != KindDeviceDenied || st.Message == "" {
		t.Errorf("error not surfaced: %v %q", st.Err, st.Message)
	}
	if h.sink.count("failed") != 1 || h.sink.count("phase") != 0 {
		t.Errorf("events = %+v", h.sink.all())
	}
}

func TestUploadInvalidType(t *testing.T) {
	h := newHarness(t)

	err := h.sess.Upload(encoder.File{Name: "notes.txt", Type: "text/plain", Data: []byte("hi")})
	if !errors.Is(err, encoder.ErrInvalidFileType) {
		t.Fatalf("err = %v, want ErrInvalidFileType", err)
	}
	if h.sess.Phase() != Initial {
		t.Errorf("phase = %s", h.sess.Phase())
	}
	if h.client.Calls() != 0 || h.previews.Created() != 0 {
		t.Error("invalid upload reached the client or created a preview")
	}
}

func TestServerErrorRevokesPreview(t *testing.T) {
	h := newHarness(t)

	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	if h.previews.Live() != 1 {
		t.Fatalf("live previews = %d, want 1", h.previews.Live())
	}

	h.settle(t, reply{err: &analysis.ServerError{StatusCode: 500}})

	st := h.sess.State()
	if st.Phase != Initial || st.Preview != encoder.NoHandle || st.Result != nil {
		t.Errorf("state = %+v", st)
	}
	var se *analysis.ServerError
	if !errors.As(st.Err, &se) || se.StatusCode != 500 {
		t.Errorf("err = %v, want ServerError{500}", st.Err)
	}
	if h.previews.Live() != 0 {
		t.Errorf("live previews = %d, want 0", h.previews.Live())
	}
}

func TestFailureKinds(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
		want  Kind
	}{
		{"network", reply{err: &analysis.NetworkError{Err: errors.New("connection refused")}}, KindNetwork},
		{"server", reply{err: &analysis.ServerError{StatusCode: 503}}, KindServer},
		{"malformed", reply{payload: `{"skin_conditions":{}}`}, KindMalformedResponse},
		{"not json", reply{payload: `<html>`}, KindMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if err := h.sess.Upload(pngFile(t)); err != nil {
				t.Fatal(err)
			}
			h.settle(t, tt.reply)
			st := h.sess.State()
			if st.Phase != Initial {
				t.Errorf("phase = %s, want initial", st.Phase)
			}
			if KindOf(st.Err) != tt.want {
				t.Errorf("kind = %s, want %s", KindOf(st.Err), tt.want)
			}
		})
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	h := newHarness(t)

	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	h.client.waitCalls(t, 1)
	if err := h.sess.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	h.client.waitCalls(t, 2)

	// First answer belongs to the abandoned request.
	h.client.answer(t, reply{payload: `{"predicted_skin_type":"Dry","overall_skin_condition_score":10}`})
	time.Sleep(20 * time.Millisecond)
	if st := h.sess.State(); st.Phase != Processing || st.Result != nil {
		t.Fatalf("stale response applied: %+v", st)
	}

	h.settle(t, reply{payload: protectionPayload})
	st := h.sess.State()
	if st.Phase != Complete || st.Result.SkinType != "Oily" {
		t.Errorf("state = %+v", st)
	}
	if h.sink.count("completed") != 1 {
		t.Errorf("completed events = %d, want 1", h.sink.count("completed"))
	}
	if h.previews.Live() != 1 {
		t.Errorf("live previews = %d, want 1 (first revoked on reset)", h.previews.Live())
	}
}

func TestStaleFailureDoesNotReset(t *testing.T) {
	h := newHarness(t)

	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	h.sess.Reset()
	if err := h.sess.StartCamera(context.Background()); err != nil {
		t.Fatal(err)
	}

	h.settle(t, reply{err: &analysis.ServerError{StatusCode: 500}})

	st := h.sess.State()
	if st.Phase != Capturing || !st.StreamHeld || st.Err != nil {
		t.Errorf("stale failure disturbed capture: %+v", st)
	}
}

func TestCloseWhileCapturing(t *testing.T) {
	h := newHarness(t)
	if err := h.sess.StartCamera(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.sess.Close()
	h.sess.Close()

	if h.src.Outstanding() != 0 || h.cam.Stops() != 1 {
		t.Errorf("stream not released exactly once: outstanding=%d stops=%d", h.src.Outstanding(), h.cam.Stops())
	}
	if err := h.sess.StartCamera(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestCloseWhileProcessing(t *testing.T) {
	h := newHarness(t)
	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	h.sess.Close()
	if h.previews.Live() != 0 {
		t.Errorf("live previews = %d after close", h.previews.Live())
	}

	before := len(h.sink.all())
	h.settle(t, reply{payload: protectionPayload})
	if len(h.sink.all()) != before {
		t.Errorf("events after close: %+v", h.sink.all()[before:])
	}
	if h.sess.State().Result != nil {
		t.Error("result applied after close")
	}
}

func TestCloseWhileAcquiring(t *testing.T) {
	h := newHarness(t)
	entered, unblock := h.cam.Block()

	errc := make(chan error, 1)
	go func() { errc <- h.sess.StartCamera(context.Background()) }()
	<-entered
	h.sess.Close()
	unblock()

	if err := <-errc; !errors.Is(err, ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
	if h.src.Outstanding() != 0 {
		t.Errorf("late stream not released: outstanding=%d", h.src.Outstanding())
	}
}

func TestCancelWhileAcquiring(t *testing.T) {
	h := newHarness(t)
	entered, unblock := h.cam.Block()

	errc := make(chan error, 1)
	go func() { errc <- h.sess.StartCamera(context.Background()) }()
	<-entered

	if err := h.sess.StartCamera(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second start err = %v, want ErrInvalidTransition", err)
	}
	if err := h.sess.Cancel(); err != nil {
		t.Fatal(err)
	}
	unblock()

	if err := <-errc; !errors.Is(err, ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
	if h.sess.Phase() != Initial || h.src.Outstanding() != 0 {
		t.Errorf("phase=%s outstanding=%d", h.sess.Phase(), h.src.Outstanding())
	}
}

func TestTakePhotoNotReady(t *testing.T) {
	h := newHarness(t)
	h.cam.Warmup(1)
	if err := h.sess.StartCamera(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.sess.TakePhoto(); !errors.Is(err, camera.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if st := h.sess.State(); st.Phase != Capturing || !st.StreamHeld {
		t.Fatalf("state = %+v", st)
	}
	if err := h.sess.TakePhoto(); err != nil {
		t.Fatal(err)
	}
	if h.sess.Phase() != Processing {
		t.Errorf("phase = %s", h.sess.Phase())
	}
}

func TestInvalidTransitions(t *testing.T) {
	h := newHarness(t)

	for name, trigger := range map[string]func() error{
		"take photo":           h.sess.TakePhoto,
		"cancel":               h.sess.Cancel,
		"view recommendations": h.sess.ViewRecommendations,
	} {
		if err := trigger(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s in initial: err = %v", name, err)
		}
	}

	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	if err := h.sess.Upload(pngFile(t)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("upload while processing: err = %v", err)
	}
	if err := h.sess.StartCamera(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("start camera while processing: err = %v", err)
	}
	if h.client.Calls() > 1 {
		t.Errorf("submissions = %d", h.client.Calls())
	}
	if len(h.sink.all()) == 0 || h.sess.State().Err != nil {
		t.Error("rejected triggers should not record an error")
	}
}

func TestProgressTicks(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ProgressInterval = 5 * time.Millisecond })

	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.sess.State().Progress < progressCap && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p := h.sess.State().Progress; p != progressCap {
		t.Fatalf("progress = %d, want capped at %d", p, progressCap)
	}

	h.settle(t, reply{payload: protectionPayload})
	after := len(h.sink.all())
	time.Sleep(30 * time.Millisecond)
	if n := len(h.sink.all()); n != after {
		t.Errorf("ticker kept emitting after settle: %+v", h.sink.all()[after:])
	}

	var pcts []int
	completedAt := -1
	for i, e := range h.sink.all() {
		switch e.kind {
		case "progress":
			if completedAt >= 0 {
				t.Errorf("progress %d after completion", e.pct)
			}
			pcts = append(pcts, e.pct)
		case "completed":
			completedAt = i
		}
	}
	if pcts[0] != 0 || pcts[len(pcts)-1] != ProgressDone {
		t.Errorf("progress sequence = %v", pcts)
	}
	for i := 1; i < len(pcts)-1; i++ {
		if pcts[i] < pcts[i-1] || pcts[i] > progressCap {
			t.Errorf("progress sequence not monotonic within cap: %v", pcts)
			break
		}
	}
}

func TestResetStopsTicker(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ProgressInterval = 2 * time.Millisecond })
	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	h.sess.Reset()
	n := h.sink.count("progress")
	time.Sleep(20 * time.Millisecond)
	if h.sink.count("progress") != n {
		t.Error("progress emitted after reset")
	}
	if h.sess.State().Progress != 0 {
		t.Errorf("progress = %d after reset", h.sess.State().Progress)
	}
}

func TestSignOutResetsAndRedirects(t *testing.T) {
	provider := auth.NewMemory()
	provider.SignIn(auth.User{ID: "u1"})
	h := newHarness(t, func(c *Config) { c.Auth = provider })

	if provider.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", provider.Subscribers())
	}
	if err := h.sess.StartCamera(context.Background()); err != nil {
		t.Fatal(err)
	}

	provider.SignOut()

	if h.sess.Phase() != Initial || h.src.Outstanding() != 0 {
		t.Errorf("sign-out left phase=%s outstanding=%d", h.sess.Phase(), h.src.Outstanding())
	}
	calls := h.router.Calls()
	if len(calls) != 1 || calls[0].Dest != nav.SignIn {
		t.Errorf("navigation = %+v, want sign-in redirect", calls)
	}

	h.sess.Close()
	if provider.Subscribers() != 0 {
		t.Errorf("subscribers = %d after close, want 0", provider.Subscribers())
	}
}

func TestScanAgainAfterComplete(t *testing.T) {
	h := newHarness(t)
	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	h.settle(t, reply{payload: protectionPayload})
	h.sess.ViewRecommendations()

	if err := h.sess.Reset(); err != nil {
		t.Fatal(err)
	}
	st := h.sess.State()
	if st.Phase != Initial || st.Result != nil || st.Preview != encoder.NoHandle {
		t.Errorf("state = %+v", st)
	}

	if err := h.sess.Upload(pngFile(t)); err != nil {
		t.Fatal(err)
	}
	h.settle(t, reply{payload: protectionPayload})
	h.sess.ViewRecommendations()
	if len(h.router.Calls()) != 2 {
		t.Errorf("navigation calls = %d, want one per completed scan", len(h.router.Calls()))
	}
	if h.sess.Scans() != 2 {
		t.Errorf("scans = %d", h.sess.Scans())
	}
}
