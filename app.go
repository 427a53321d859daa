package main

import (
	"skinscan/analysis"
	"skinscan/auth"
	"skinscan/camera"
	"skinscan/config"
	"skinscan/encoder"
	"skinscan/nav"
	"skinscan/session"
)

var guestUser = auth.User{ID: "guest", Name: "Guest"}

// deps are the collaborators shared by the TUI, the GUI and test mode.
type deps struct {
	cfg      *config.Config
	camCtx   camera.Context
	device   *camera.DeviceInfo
	previews *encoder.Previews
	source   *camera.Source
	client   analysis.Client
	auth     *auth.Memory
	stats    *latencyStats
}

func newDeps(cfg *config.Config, camCtx camera.Context, device *camera.DeviceInfo) *deps {
	d := &deps{
		cfg:      cfg,
		camCtx:   camCtx,
		device:   device,
		previews: encoder.NewPreviews(),
		auth:     auth.NewMemory(),
		stats:    &latencyStats{},
	}
	d.source = camera.NewSource(camCtx, device, camera.Config{
		Width:  cfg.CameraWidth,
		Height: cfg.CameraHeight,
	})
	if cfg.Mock {
		d.client = analysis.NewFake()
	} else {
		d.client = analysis.NewHTTP(cfg.Endpoint, cfg.SubmitTimeout).WithBearer(d.auth.Token)
	}
	return d
}

// restoreUser signs in from the configured token, or as a guest.
func (d *deps) restoreUser() error {
	switch {
	case d.cfg.Token != "":
		u, err := auth.FromToken(d.cfg.Token, d.cfg.TokenSecret)
		if err != nil {
			return err
		}
		d.auth.SignIn(u)
	case d.cfg.Guest:
		d.auth.SignIn(guestUser)
	}
	return nil
}

// startScreen is the scan screen when a user is signed in, otherwise the
// sign-in screen.
func (d *deps) startScreen() string {
	start := nav.Scan
	nav.Guard(d.auth, nav.RouterFunc(func(dest string, _ map[string]string) { start = dest }), nav.Scan)
	return start
}

func (d *deps) newSession(router nav.Router, sink session.Sink) *session.Session {
	return session.New(session.Config{
		Source:        d.source,
		Encoder:       encoder.New(d.previews),
		Client:        d.client,
		Router:        router,
		Auth:          d.auth,
		Sink:          newFeedback(sink, d.stats),
		SubmitTimeout: d.cfg.SubmitTimeout,
	})
}

func (d *deps) endpointLabel() string {
	if d.cfg.Mock {
		return "mock analyzer"
	}
	return d.cfg.Endpoint
}

func (d *deps) deviceLabel() string {
	switch {
	case d.camCtx == nil:
		return "no camera driver (upload only)"
	case d.device != nil:
		return d.device.Name
	}
	return "default camera"
}

func (d *deps) close() {
	if d.camCtx != nil {
		d.camCtx.Close()
	}
}
