// Package session drives one capture-and-analyze flow: acquiring the
// camera, taking or uploading a photo, submitting it and presenting the
// result. Every trigger is gated on the current phase, and each entry into
// Processing submits exactly one request. Responses that arrive after the
// session has moved on are discarded.
package session

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"skinscan/analysis"
	"skinscan/auth"
	"skinscan/camera"
	"skinscan/encoder"
	"skinscan/log"
	"skinscan/metrics"
	"skinscan/nav"
	"skinscan/result"
)

const DefaultSubmitTimeout = 60 * time.Second

type MediaSource interface {
	Acquire(ctx context.Context) (*camera.Handle, error)
	CaptureStill(h *camera.Handle) (image.Image, error)
	Release(h *camera.Handle)
}

type ImageEncoder interface {
	FromStill(img image.Image) (*encoder.CapturedImage, error)
	FromFile(f encoder.File) (*encoder.CapturedImage, error)
	Revoke(h encoder.Handle)
}

type Config struct {
	Source  MediaSource
	Encoder ImageEncoder
	Client  analysis.Client
	Router  nav.Router
	Auth    auth.Provider // optional
	Sink    Sink          // optional

	ProgressInterval time.Duration
	SubmitTimeout    time.Duration
}

// State is a point-in-time copy of the session.
type State struct {
	Phase      Phase
	Starting   bool
	StreamHeld bool
	Preview    encoder.Handle
	Result     *result.Result
	Err        error
	Message    string
	Progress   int
	RequestID  string
}

type Session struct {
	source   MediaSource
	enc      ImageEncoder
	client   analysis.Client
	router   nav.Router
	sink     Sink
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	phase       Phase
	stream      *camera.Handle
	pending     *encoder.CapturedImage
	result      *result.Result
	lastErr     error
	acquiring   bool
	abandon     bool
	request     uint64
	requestID   string
	ticker      *progressTicker
	progress    int
	navigated   bool
	closed      bool
	scans       int
	unsubscribe func()

	notifyMu sync.Mutex
	inflight sync.WaitGroup
}

func New(cfg Config) *Session {
	s := &Session{
		source:   cfg.Source,
		enc:      cfg.Encoder,
		client:   cfg.Client,
		router:   cfg.Router,
		sink:     cfg.Sink,
		interval: cfg.ProgressInterval,
		timeout:  cfg.SubmitTimeout,
	}
	if s.sink == nil {
		s.sink = NopSink{}
	}
	if s.router == nil {
		s.router = nav.RouterFunc(func(string, map[string]string) {})
	}
	if s.interval <= 0 {
		s.interval = ProgressInterval
	}
	if s.timeout <= 0 {
		s.timeout = DefaultSubmitTimeout
	}
	if cfg.Auth != nil {
		s.unsubscribe = cfg.Auth.Subscribe(s.authChanged)
	}
	return s
}

// batch collects the effects of one locked section so they can run after
// the lock is dropped.
type batch struct {
	stop  *progressTicker
	notes []func(Sink)
}

func (b *batch) note(fn func(Sink)) { b.notes = append(b.notes, fn) }

func (s *Session) flush(b *batch) {
	b.stop.Stop()
	if len(b.notes) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, fn := range b.notes {
		fn(s.sink)
	}
}

func (s *Session) gateLocked(trigger string, allowed Phase) error {
	if s.closed {
		return ErrClosed
	}
	if s.acquiring {
		return fmt.Errorf("%w: %s while camera is starting", ErrInvalidTransition, trigger)
	}
	if s.phase != allowed {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, trigger, s.phase)
	}
	return nil
}

func (s *Session) moveLocked(to Phase, b *batch) {
	from := s.phase
	if from == to {
		return
	}
	s.phase = to
	log.Phase(from.String(), to.String(), s.requestID)
	metrics.Transition(to.String())
	b.note(func(k Sink) { k.PhaseChanged(from, to) })
}

// dropLocked releases the stream, revokes the pending preview and detaches
// the progress ticker.
func (s *Session) dropLocked(b *batch) {
	if s.stream != nil {
		s.source.Release(s.stream)
		s.stream = nil
	}
	if s.pending != nil {
		s.enc.Revoke(s.pending.Preview)
		s.pending = nil
	}
	if s.ticker != nil {
		b.stop = s.ticker
		s.ticker = nil
	}
	s.result = nil
	s.navigated = false
	s.progress = 0
}

func (s *Session) failLocked(err error, b *batch) {
	s.lastErr = err
	kind := KindOf(err)
	log.Failure(kind.String(), err)
	s.dropLocked(b)
	s.moveLocked(Initial, b)
	msg := Message(err)
	b.note(func(k Sink) { k.Failed(err, msg) })
}

// StartCamera acquires the camera and enters Capturing. It blocks while the
// platform asks for permission.
func (s *Session) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	if err := s.gateLocked("start camera", Initial); err != nil {
		s.mu.Unlock()
		return err
	}
	s.acquiring = true
	s.abandon = false
	s.lastErr = nil
	s.mu.Unlock()

	h, err := s.source.Acquire(ctx)

	s.mu.Lock()
	s.acquiring = false
	if s.closed || s.abandon {
		s.abandon = false
		s.mu.Unlock()
		if h != nil {
			s.source.Release(h)
		}
		return ErrCanceled
	}
	b := &batch{}
	if err != nil {
		metrics.CameraAcquire("error")
		s.failLocked(err, b)
		s.mu.Unlock()
		s.flush(b)
		return err
	}
	metrics.CameraAcquire("ok")
	s.stream = h
	s.moveLocked(Capturing, b)
	s.mu.Unlock()
	s.flush(b)
	return nil
}

// Viewfinder returns the current camera frame while Capturing.
func (s *Session) Viewfinder() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gateLocked("viewfinder", Capturing); err != nil {
		return nil, err
	}
	return s.source.CaptureStill(s.stream)
}

// TakePhoto grabs a still, releases the camera, encodes the still and
// submits it. ErrNotReady leaves the session in Capturing.
func (s *Session) TakePhoto() error {
	s.mu.Lock()
	if err := s.gateLocked("take photo", Capturing); err != nil {
		s.mu.Unlock()
		return err
	}
	still, err := s.source.CaptureStill(s.stream)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	b := &batch{}
	s.source.Release(s.stream)
	s.stream = nil

	img, err := s.enc.FromStill(still)
	if err != nil {
		s.failLocked(err, b)
		s.mu.Unlock()
		s.flush(b)
		return err
	}
	s.submitLocked(img, b)
	s.mu.Unlock()
	s.flush(b)
	return nil
}

// Cancel stops the camera and returns to Initial. While the camera is
// still starting, the stream is released as soon as it arrives.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.acquiring && !s.closed {
		s.abandon = true
		s.mu.Unlock()
		return nil
	}
	if err := s.gateLocked("cancel", Capturing); err != nil {
		s.mu.Unlock()
		return err
	}
	b := &batch{}
	s.dropLocked(b)
	s.moveLocked(Initial, b)
	s.mu.Unlock()
	s.flush(b)
	return nil
}

// Upload submits a user-chosen file. Files whose declared type is not an
// image are rejected without a request.
func (s *Session) Upload(f encoder.File) error {
	s.mu.Lock()
	if err := s.gateLocked("upload", Initial); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lastErr = nil
	b := &batch{}
	img, err := s.enc.FromFile(f)
	if err != nil {
		s.failLocked(err, b)
		s.mu.Unlock()
		s.flush(b)
		return err
	}
	s.submitLocked(img, b)
	s.mu.Unlock()
	s.flush(b)
	return nil
}

// Reset returns to Initial from any phase, discarding the stream, the
// pending image and any result. An in-flight response becomes stale.
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.acquiring {
		s.abandon = true
	}
	b := &batch{}
	s.dropLocked(b)
	s.lastErr = nil
	s.request++
	s.moveLocked(Initial, b)
	s.mu.Unlock()
	s.flush(b)
	return nil
}

// ViewRecommendations navigates to the recommended chapter. Repeated calls
// for the same result navigate only once.
func (s *Session) ViewRecommendations() error {
	s.mu.Lock()
	if err := s.gateLocked("view recommendations", Complete); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.navigated {
		s.mu.Unlock()
		return nil
	}
	s.navigated = true
	n := s.result.RecommendedChapter
	s.mu.Unlock()

	nav.ToChapter(s.router, n)
	return nil
}

// Close tears the session down: the stream is released, previews are
// revoked, the ticker stops and any pending response will be ignored.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	b := &batch{}
	s.dropLocked(b)
	s.request++
	s.phase = Initial
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	b.stop.Stop()
}

// Wait blocks until every submitted request has returned.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Phase:      s.phase,
		Starting:   s.acquiring,
		StreamHeld: s.stream != nil,
		Err:        s.lastErr,
		Message:    Message(s.lastErr),
		Progress:   s.progress,
		RequestID:  s.requestID,
	}
	if s.pending != nil {
		st.Preview = s.pending.Preview
	}
	if s.result != nil {
		r := *s.result
		st.Result = &r
	}
	return st
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Scans reports how many analyses completed.
func (s *Session) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

func (s *Session) submitLocked(img *encoder.CapturedImage, b *batch) {
	s.pending = img
	s.request++
	req := s.request
	s.requestID = uuid.NewString()
	reqID := s.requestID
	s.progress = 0
	s.moveLocked(Processing, b)
	b.note(func(k Sink) { k.Progress(0) })

	t := newProgressTicker()
	meter := &progressMeter{}
	s.ticker = t
	t.start(s.interval, func() bool { return s.tick(t, meter) })

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.inflight.Add(1)
	go s.await(ctx, cancel, req, reqID, img)
}

func (s *Session) tick(t *progressTicker, meter *progressMeter) bool {
	s.mu.Lock()
	if s.ticker != t {
		s.mu.Unlock()
		return false
	}
	pct := meter.Tick()
	s.progress = pct
	s.mu.Unlock()

	s.notifyMu.Lock()
	s.sink.Progress(pct)
	s.notifyMu.Unlock()
	return true
}

func (s *Session) await(ctx context.Context, cancel context.CancelFunc, req uint64, reqID string, img *encoder.CapturedImage) {
	defer s.inflight.Done()
	defer cancel()

	resp, err := s.client.Submit(ctx, img)
	var res result.Result
	if err == nil {
		logSubmission(s.client.Name(), reqID, img, resp)
		if res, err = result.Normalize(resp.Payload); err != nil {
			metrics.MalformedResponse()
		}
	}

	s.mu.Lock()
	if s.closed || req != s.request || s.phase != Processing {
		s.mu.Unlock()
		log.StaleResponse(reqID)
		metrics.StaleResponse()
		return
	}

	b := &batch{stop: s.ticker}
	s.ticker = nil
	if err != nil {
		s.failLocked(err, b)
	} else {
		s.result = &res
		s.progress = ProgressDone
		s.scans++
		if !res.ScoreInRange() {
			log.ScoreOutOfRange(reqID, res.SkinScore)
		}
		log.AnalysisResult(reqID, res.SkinType, res.SkinScore, res.RecommendedChapter, res.Conditions)
		b.note(func(k Sink) { k.Progress(ProgressDone) })
		s.moveLocked(Complete, b)
		b.note(func(k Sink) { k.Completed(res) })
	}
	s.mu.Unlock()
	s.flush(b)
}

func (s *Session) authChanged(_ auth.User, ok bool) {
	if ok {
		return
	}
	if err := s.Reset(); err != nil {
		return
	}
	s.router.NavigateTo(nav.SignIn, map[string]string{"next": nav.Scan})
}

func logSubmission(provider, reqID string, img *encoder.CapturedImage, resp *analysis.Response) {
	sub := log.Submission{
		Provider:   provider,
		RequestID:  reqID,
		StatusCode: resp.StatusCode,
		UploadKB:   float64(img.Size) / 1024,
	}
	if m := resp.Metrics; m != nil {
		sub.DNSTimeMs = ms(m.DNS)
		sub.TLSTimeMs = ms(m.TLS)
		sub.TTFBMs = ms(m.TTFB)
		sub.TotalTimeMs = ms(m.Total)
		sub.ConnReused = m.ConnReused
		sub.TLSProto = m.TLSProtocol
	}
	log.SubmissionMetrics(sub)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
