package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/sjson"

	"skinscan/encoder"
)

var mockSkinTypes = []string{"Oily", "Dry", "Combination", "Sensitive", "Normal"}

// Fake answers without a network. By default it derives a deterministic
// payload from the image size; SetPayload and SetError override that.
type Fake struct {
	mu      sync.Mutex
	payload []byte
	err     error
	delay   time.Duration
	gate    chan struct{}
	calls   int
	started chan struct{}
}

func NewFake() *Fake {
	return &Fake{started: make(chan struct{}, 64)}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) SetPayload(p []byte) {
	f.mu.Lock()
	f.payload = p
	f.err = nil
	f.mu.Unlock()
}

func (f *Fake) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

// Hold blocks every Submit until the returned function is called.
func (f *Fake) Hold() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Started receives one value per Submit call as it begins.
func (f *Fake) Started() <-chan struct{} { return f.started }

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Submit(ctx context.Context, img *encoder.CapturedImage) (*Response, error) {
	f.mu.Lock()
	f.calls++
	payload, err, delay, gate := f.payload, f.err, f.delay, f.gate
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &NetworkError{Err: ctx.Err()}
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &NetworkError{Err: ctx.Err()}
		}
	}

	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = MockPayload(img.Size)
	}
	return &Response{Payload: payload, StatusCode: 200, Metrics: &NetworkMetrics{}}, nil
}

// MockPayload builds a backend-shaped response whose content depends only
// on the image size.
func MockPayload(size int) []byte {
	var conditions []string
	if size%2 == 0 {
		conditions = append(conditions, "Mild acne")
	}
	if size%3 == 0 {
		conditions = append(conditions, "Dryness around cheeks")
	}
	if size%5 == 0 {
		conditions = append(conditions, "T-zone oiliness")
	}
	if size%7 == 0 {
		conditions = append(conditions, "Fine lines")
	}
	if len(conditions) == 0 {
		conditions = append(conditions, "Balanced skin")
	}

	chapter := "brightening-glow"
	switch {
	case contains(conditions, "Mild acne"):
		chapter = "repair-recovery"
	case contains(conditions, "Dryness around cheeks"):
		chapter = "hydration-basics"
	case contains(conditions, "Fine lines"):
		chapter = "repair"
	case contains(conditions, "T-zone oiliness"):
		chapter = "protection"
	}

	doc := []byte(`{}`)
	doc, _ = sjson.SetBytes(doc, "predicted_skin_type", mockSkinTypes[size%len(mockSkinTypes)])
	doc, _ = sjson.SetRawBytes(doc, "skin_conditions", []byte(`{}`))
	for _, c := range conditions {
		doc, _ = sjson.SetBytes(doc, "skin_conditions."+c, "Current")
	}
	doc, _ = sjson.SetBytes(doc, "overall_skin_condition_score", 60+size%35)
	doc, _ = sjson.SetBytes(doc, "recommended_chapter", chapter)
	return doc
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
