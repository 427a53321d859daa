//go:build gui

// Package gui is the desktop front end: one window with the viewfinder,
// the scan controls and the result card.
package gui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"skinscan/chapter"
	"skinscan/clipboard"
	"skinscan/encoder"
	"skinscan/log"
	"skinscan/nav"
	"skinscan/result"
	"skinscan/session"
)

const (
	viewfinderInterval = 100 * time.Millisecond
	previewW, previewH = 640, 480
)

// Controller is the part of the scan session the window drives.
type Controller interface {
	StartCamera(ctx context.Context) error
	Viewfinder() (image.Image, error)
	TakePhoto() error
	Cancel() error
	Upload(f encoder.File) error
	Reset() error
	ViewRecommendations() error
	State() session.State
}

type Options struct {
	Title    string
	Previews *encoder.Previews
	// SignIn validates a token and signs the user in.
	SignIn  func(token string) (string, error)
	SignOut func()
	// SignedIn reports whether the start screen is the scanner.
	SignedIn bool
}

type App struct {
	opts    Options
	ctrl    Controller
	fyneApp fyne.App
	window  fyne.Window

	image    *canvas.Image
	progress *widget.ProgressBar
	status   *widget.Label
	card     *widget.Label
	buttons  map[string]*widget.Button
	scan     fyne.CanvasObject

	mu     sync.Mutex
	result *result.Result
	stopVF chan struct{}
}

func NewApp(opts Options) *App {
	return &App{opts: opts}
}

// Bind attaches the session; it must be called before Run.
func (a *App) Bind(ctrl Controller) {
	a.ctrl = ctrl
}

// Run builds the window and blocks in the fyne event loop.
func Run(a *App) error {
	if a.ctrl == nil {
		return errors.New("gui: no session bound")
	}
	a.fyneApp = app.NewWithID("io.skinscan.gui")
	a.fyneApp.Settings().SetTheme(warmTheme{})

	title := a.opts.Title
	if title == "" {
		title = "skinscan"
	}
	a.window = a.fyneApp.NewWindow(title)
	a.scan = a.buildScan()
	a.window.SetContent(a.scan)
	a.window.Resize(fyne.NewSize(720, 760))
	a.window.SetOnClosed(a.stopViewfinder)
	a.refresh(session.Initial)

	if !a.opts.SignedIn {
		a.window.Show()
		a.showSignIn()
		a.fyneApp.Run()
		return nil
	}
	a.window.ShowAndRun()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

func (a *App) buildScan() fyne.CanvasObject {
	a.image = canvas.NewImageFromImage(nil)
	a.image.FillMode = canvas.ImageFillContain
	a.image.SetMinSize(fyne.NewSize(480, 360))

	a.progress = widget.NewProgressBar()
	a.progress.Max = 100
	a.status = widget.NewLabel("Start the camera or upload a photo.")
	a.status.Wrapping = fyne.TextWrapWord
	a.card = widget.NewLabel("")
	a.card.Wrapping = fyne.TextWrapWord

	a.buttons = map[string]*widget.Button{
		"camera": widget.NewButton("Start camera", a.do(func(c Controller) error {
			return c.StartCamera(context.Background())
		})),
		"snap":   widget.NewButton("Take photo", a.do(Controller.TakePhoto)),
		"cancel": widget.NewButton("Cancel", a.do(Controller.Cancel)),
		"upload": widget.NewButton("Upload photo", a.pickFile),
		"reset":  widget.NewButton("Scan again", a.do(Controller.Reset)),
		"view":   widget.NewButton("View recommendations", a.do(Controller.ViewRecommendations)),
		"copy":   widget.NewButton("Copy summary", a.copySummary),
		"logout": widget.NewButton("Sign out", func() { go a.opts.SignOut() }),
	}
	a.buttons["snap"].Importance = widget.HighImportance
	a.buttons["view"].Importance = widget.HighImportance

	row := container.NewHBox()
	for _, k := range []string{"camera", "snap", "cancel", "upload", "reset", "view", "copy", "logout"} {
		row.Add(a.buttons[k])
	}
	return container.NewBorder(nil,
		container.NewVBox(a.progress, a.status, a.card, container.NewCenter(row)),
		nil, nil, a.image)
}

// do runs a trigger off the UI goroutine; sinks call back through fyne.Do.
func (a *App) do(fn func(Controller) error) func() {
	return func() {
		go func() {
			err := fn(a.ctrl)
			switch {
			case err == nil,
				errors.Is(err, session.ErrInvalidTransition),
				errors.Is(err, session.ErrCanceled),
				errors.Is(err, session.ErrClosed):
			case session.KindOf(err) == session.KindNotReady:
				fyne.Do(func() { a.status.SetText(session.Message(err)) })
			default:
				log.Warnf("gui trigger: %v", err)
			}
		}()
	}
}

func (a *App) pickFile() {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		path := rc.URI().Path()
		rc.Close()
		a.do(func(c Controller) error {
			f, err := encoder.OpenFile(path)
			if err != nil {
				fyne.Do(func() { a.status.SetText(fmt.Sprintf("Could not read %s", path)) })
				return nil
			}
			return c.Upload(f)
		})()
	}, a.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}))
	d.Show()
}

func (a *App) copySummary() {
	a.mu.Lock()
	r := a.result
	a.mu.Unlock()
	if r == nil {
		return
	}
	if err := clipboard.Copy(r.Summary()); err != nil {
		a.status.SetText("Copy failed: " + err.Error())
		return
	}
	a.status.SetText("Summary copied.")
}

func (a *App) showSignIn() {
	token := widget.NewPasswordEntry()
	items := []*widget.FormItem{widget.NewFormItem("Token", token)}
	dialog.ShowForm("Sign in", "Sign in", "Quit", items, func(ok bool) {
		if !ok {
			a.fyneApp.Quit()
			return
		}
		name, err := a.opts.SignIn(strings.TrimSpace(token.Text))
		if err != nil {
			dialog.ShowError(err, a.window)
			a.showSignIn()
			return
		}
		a.status.SetText("Signed in as " + name + ".")
	}, a.window)
}

func (a *App) refresh(phase session.Phase) {
	enabled := map[string]bool{}
	switch phase {
	case session.Initial:
		enabled["camera"], enabled["upload"] = true, true
		enabled["logout"] = a.opts.SignOut != nil
	case session.Capturing:
		enabled["snap"], enabled["cancel"] = true, true
	case session.Processing:
		enabled["reset"] = true
	case session.Complete:
		enabled["reset"], enabled["view"] = true, true
		enabled["copy"] = clipboard.Available()
	}
	for k, b := range a.buttons {
		if enabled[k] {
			b.Enable()
		} else {
			b.Disable()
		}
	}
}

func (a *App) startViewfinder() {
	a.mu.Lock()
	if a.stopVF != nil {
		a.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	a.stopVF = stop
	a.mu.Unlock()

	go func() {
		t := time.NewTicker(viewfinderInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
			}
			frame, err := a.ctrl.Viewfinder()
			if err != nil {
				continue
			}
			fyne.Do(func() {
				a.image.Image = frame
				a.image.Refresh()
			})
		}
	}()
}

func (a *App) stopViewfinder() {
	a.mu.Lock()
	if a.stopVF != nil {
		close(a.stopVF)
		a.stopVF = nil
	}
	a.mu.Unlock()
}

func (a *App) showPreview() {
	st := a.ctrl.State()
	if st.Preview == encoder.NoHandle || a.opts.Previews == nil {
		return
	}
	img, err := a.opts.Previews.Thumbnail(st.Preview, previewW, previewH)
	if err != nil {
		return
	}
	fyne.Do(func() {
		a.image.Image = img
		a.image.Refresh()
	})
}

// PhaseChanged implements session.Sink.
func (a *App) PhaseChanged(from, to session.Phase) {
	if to == session.Capturing {
		a.startViewfinder()
	} else {
		a.stopViewfinder()
	}
	if to == session.Processing {
		a.showPreview()
	}
	fyne.Do(func() {
		switch to {
		case session.Initial:
			a.mu.Lock()
			a.result = nil
			a.mu.Unlock()
			a.image.Image = nil
			a.image.Refresh()
			a.progress.SetValue(0)
			a.card.SetText("")
			if from != session.Initial {
				a.status.SetText("Start the camera or upload a photo.")
			}
		case session.Capturing:
			a.status.SetText("Position your face in the frame and take a photo.")
		case session.Processing:
			a.status.SetText("Analyzing your skin...")
		}
		a.refresh(to)
	})
}

func (a *App) Progress(pct int) {
	fyne.Do(func() { a.progress.SetValue(float64(pct)) })
}

func (a *App) Completed(r result.Result) {
	a.mu.Lock()
	a.result = &r
	a.mu.Unlock()
	fyne.Do(func() {
		a.status.SetText("Analysis complete.")
		a.card.SetText(resultCard(r))
	})
}

func (a *App) Failed(err error, msg string) {
	fyne.Do(func() {
		a.status.SetText(msg)
		if a.window != nil {
			dialog.ShowInformation("Scan failed", msg, a.window)
		}
	})
}

// NavigateTo implements nav.Router.
func (a *App) NavigateTo(dest string, params map[string]string) {
	fyne.Do(func() {
		switch dest {
		case nav.Chapter:
			n, _ := strconv.Atoi(params["chapter"])
			a.showChapter(n)
		case nav.SignIn:
			a.window.SetContent(a.scan)
			a.showSignIn()
		default:
			a.window.SetContent(a.scan)
		}
	})
}

func (a *App) showChapter(n int) {
	ch, ok := chapter.Get(n)
	if !ok {
		ch, _ = chapter.Get(chapter.Default)
	}
	products := widget.NewLabel("• " + strings.Join(ch.Products, "\n• "))
	desc := widget.NewLabel(ch.Description)
	desc.Wrapping = fyne.TextWrapWord
	card := widget.NewCard(fmt.Sprintf("Chapter %d: %s", ch.Number, ch.Title), ch.Label,
		container.NewVBox(desc, widget.NewSeparator(), products))

	prev := widget.NewButton("Previous", func() { a.showChapter(ch.Number - 1) })
	next := widget.NewButton("Next", func() { a.showChapter(ch.Number + 1) })
	if ch.Number <= 1 {
		prev.Disable()
	}
	if _, ok := chapter.Get(ch.Number + 1); !ok {
		next.Disable()
	}
	back := widget.NewButton("Back to scan", func() { a.window.SetContent(a.scan) })
	a.window.SetContent(container.NewBorder(nil,
		container.NewCenter(container.NewHBox(prev, back, next)), nil, nil, card))
}

func resultCard(r result.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Skin type: %s\n", r.SkinType)
	if r.ScoreInRange() {
		fmt.Fprintf(&b, "Score: %d / 100\n", r.SkinScore)
	} else {
		fmt.Fprintf(&b, "Score: %d (outside 0-100)\n", r.SkinScore)
	}
	if len(r.Conditions) == 0 {
		b.WriteString("No conditions detected")
	}
	for i, c := range r.Conditions {
		fmt.Fprintf(&b, "%s (%s)\n", c, result.Severity(i))
	}
	if ch, ok := chapter.Get(r.RecommendedChapter); ok {
		fmt.Fprintf(&b, "\nRecommended: Chapter %d, %s", ch.Number, ch.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}
