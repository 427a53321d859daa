package analysis

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"skinscan/encoder"
	"skinscan/metrics"
)

const (
	DefaultEndpoint = "http://localhost:5000/analyze"
	FieldImage      = "image"
	maxErrorBody    = 512
)

// HTTP posts the image as multipart/form-data to a single endpoint.
type HTTP struct {
	client   *TracedClient
	endpoint string
	token    func() string
}

func NewHTTP(endpoint string, timeout time.Duration) *HTTP {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTP{client: NewTracedClient(timeout), endpoint: endpoint}
}

// WithBearer attaches an Authorization header whenever token returns a
// non-empty string.
func (h *HTTP) WithBearer(token func() string) *HTTP {
	h.token = token
	return h
}

func (h *HTTP) Name() string     { return "http" }
func (h *HTTP) Endpoint() string { return h.endpoint }

func (h *HTTP) Probe() (time.Duration, error) {
	return h.client.Probe(h.endpoint)
}

func (h *HTTP) Submit(ctx context.Context, img *encoder.CapturedImage) (*Response, error) {
	body, contentType, err := buildForm(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if h.token != nil {
		if tok := h.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		metrics.ObserveSubmission(metrics.OutcomeNetwork, time.Since(start), img.Size)
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveSubmission(metrics.OutcomeServer, resp.Metrics.Total, img.Size)
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: trimBody(resp.Body)}
	}

	metrics.ObserveSubmission(metrics.OutcomeOK, resp.Metrics.Total, img.Size)
	return &Response{
		Payload:    resp.Body,
		StatusCode: resp.StatusCode,
		Metrics:    resp.Metrics,
	}, nil
}

func buildForm(img *encoder.CapturedImage) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	body.Grow(len(img.Data) + 512)
	writer := multipart.NewWriter(&body)

	name := img.Name
	if name == "" {
		name = encoder.StillName
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldImage, name))
	header.Set("Content-Type", img.Type)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
