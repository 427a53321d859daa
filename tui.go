package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"skinscan/auth"
	"skinscan/chapter"
	"skinscan/clipboard"
	"skinscan/encoder"
	"skinscan/log"
	"skinscan/nav"
	"skinscan/result"
	"skinscan/session"
)

// TUI message types
type phaseMsg struct{ from, to session.Phase }
type progressMsg struct{ pct int }
type completedMsg struct{ result result.Result }
type failedMsg struct {
	err     error
	message string
}
type navigateMsg struct {
	dest   string
	params map[string]string
}
type frameTickMsg struct{ gen int }
type frameMsg struct {
	gen  int
	view string
}
type hintMsg struct{ text string }
type signedInMsg struct{ user auth.User }
type copiedMsg struct{}

const (
	frameInterval = 150 * time.Millisecond
	imageCols     = 48
	imageRows     = 24 // terminal rows; each holds two pixel rows
)

type screen int

const (
	screenSignIn screen = iota
	screenScan
	screenChapter
)

type inputMode int

const (
	inputNone inputMode = iota
	inputUpload
	inputToken
)

// tuiBridge is the session's Sink and Router. Events are forwarded into the
// Bubble Tea loop; p is set once the program exists.
type tuiBridge struct{ p *tea.Program }

func (b *tuiBridge) send(msg tea.Msg) {
	if b.p != nil {
		b.p.Send(msg)
	}
}

func (b *tuiBridge) PhaseChanged(from, to session.Phase) { b.send(phaseMsg{from, to}) }
func (b *tuiBridge) Progress(pct int)                    { b.send(progressMsg{pct}) }
func (b *tuiBridge) Completed(r result.Result)           { b.send(completedMsg{r}) }
func (b *tuiBridge) Failed(err error, msg string)        { b.send(failedMsg{err, msg}) }

func (b *tuiBridge) NavigateTo(dest string, params map[string]string) {
	b.send(navigateMsg{dest: dest, params: params})
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("216")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	imageBox     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238"))
	severityTint = map[string]lipgloss.Style{
		"Prominent": lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		"Moderate":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"Mild":      lipgloss.NewStyle().Foreground(lipgloss.Color("150")),
	}
)

type tuiModel struct {
	d    *deps
	sess *session.Session

	screen   screen
	next     string // screen to open after sign-in
	phase    session.Phase
	frameGen int

	progress progress.Model
	pct      int
	spinner  spinner.Model
	input    textinput.Model
	mode     inputMode

	result  *result.Result
	message string // last failure
	hint    string // transient, non-failure notice
	image   string
	chapter int
	copied  bool

	width, height int
}

func newTUIModel(d *deps, sess *session.Session) tuiModel {
	p := progress.New(
		progress.WithGradient("#F5C6A5", "#C77D5A"),
		progress.WithWidth(40),
	)
	s := spinner.New()
	s.Spinner = spinner.Dot
	ti := textinput.New()
	ti.CharLimit = 4096

	m := tuiModel{
		d:        d,
		sess:     sess,
		screen:   screenScan,
		next:     nav.Scan,
		progress: p,
		spinner:  s,
		input:    ti,
		chapter:  chapter.Default,
	}
	if d.startScreen() == nav.SignIn {
		m.openSignIn(nav.Scan)
	}
	return m
}

func (m *tuiModel) openSignIn(next string) {
	m.screen = screenSignIn
	m.next = next
	m.mode = inputToken
	m.input.Reset()
	m.input.Placeholder = "paste sign-in token (JWT)"
	m.input.EchoMode = textinput.EchoPassword
	m.input.EchoCharacter = '•'
	m.input.Focus()
}

func (m *tuiModel) openUpload() {
	m.mode = inputUpload
	m.input.Reset()
	m.input.Placeholder = "path to a photo (jpg, png, webp...)"
	m.input.EchoMode = textinput.EchoNormal
	m.input.Focus()
}

func (m *tuiModel) closeInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.Reset()
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// trigger runs a session trigger off the event loop; triggers block on sink
// delivery, which needs the loop to be free.
func trigger(fn func() error) tea.Cmd {
	return func() tea.Msg {
		err := fn()
		switch {
		case err == nil,
			errors.Is(err, session.ErrInvalidTransition),
			errors.Is(err, session.ErrCanceled),
			errors.Is(err, session.ErrClosed):
			return nil
		case session.KindOf(err) == session.KindNotReady:
			return hintMsg{text: session.Message(err)}
		}
		// Failures that reach the sink are shown from failedMsg.
		return nil
	}
}

func frameTick(gen int) tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameTickMsg{gen: gen} })
}

func (m tuiModel) grabFrame(gen int) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		img, err := sess.Viewfinder()
		if err != nil {
			return frameMsg{gen: gen}
		}
		return frameMsg{gen: gen, view: renderHalfBlock(encoder.Fit(img, imageCols, imageRows*2))}
	}
}

func (m tuiModel) renderPreview() string {
	st := m.sess.State()
	if st.Preview == encoder.NoHandle {
		return ""
	}
	img, err := m.d.previews.Thumbnail(st.Preview, imageCols, imageRows*2)
	if err != nil {
		log.Warnf("preview thumbnail: %v", err)
		return ""
	}
	return renderHalfBlock(img)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, min(40, msg.Width-imageCols-12))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case phaseMsg:
		m.phase = msg.to
		m.hint = ""
		switch msg.to {
		case session.Initial:
			m.image = ""
			m.result = nil
			m.pct = 0
			return m, m.progress.SetPercent(0)
		case session.Capturing:
			m.message = ""
			m.frameGen++
			return m, m.grabFrame(m.frameGen)
		case session.Processing:
			m.message = ""
			m.result = nil
			m.copied = false
			m.image = m.renderPreview()
		}

	case progressMsg:
		m.pct = msg.pct
		return m, m.progress.SetPercent(float64(msg.pct) / 100)

	case completedMsg:
		r := msg.result
		m.result = &r
		m.chapter = r.RecommendedChapter

	case failedMsg:
		m.message = msg.message

	case hintMsg:
		m.hint = msg.text

	case copiedMsg:
		m.copied = true

	case frameTickMsg:
		if msg.gen == m.frameGen && m.phase == session.Capturing {
			return m, m.grabFrame(msg.gen)
		}

	case frameMsg:
		if msg.gen != m.frameGen || m.phase != session.Capturing {
			return m, nil
		}
		if msg.view != "" {
			m.image = msg.view
		}
		return m, frameTick(msg.gen)

	case navigateMsg:
		switch msg.dest {
		case nav.Chapter:
			if n, err := strconv.Atoi(msg.params["chapter"]); err == nil {
				m.chapter = n
			}
			m.screen = screenChapter
		case nav.SignIn:
			next := msg.params["next"]
			if next == "" {
				next = nav.Scan
			}
			m.openSignIn(next)
			m.message = ""
		default:
			m.screen = screenScan
		}

	case signedInMsg:
		log.Infof("signed in as %s", msg.user.Display())
		m.closeInput()
		m.message = ""
		if m.next == nav.Chapter {
			m.screen = screenChapter
		} else {
			m.screen = screenScan
		}

	case error:
		m.message = msg.Error()
	}

	var cmd tea.Cmd
	if m.mode != inputNone {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m tuiModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.mode == inputToken {
			return m, tea.Quit
		}
		m.closeInput()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m, nil
		}
		if m.mode == inputToken {
			m.message = ""
			return m, m.signIn(value)
		}
		m.closeInput()
		return m, m.upload(value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tuiModel) signIn(token string) tea.Cmd {
	d := m.d
	return func() tea.Msg {
		u, err := auth.FromToken(token, d.cfg.TokenSecret)
		if err != nil {
			return err
		}
		d.auth.SignIn(u)
		return signedInMsg{user: u}
	}
}

func (m tuiModel) upload(path string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		f, err := encoder.OpenFile(path)
		if err != nil {
			return fmt.Errorf("could not read %s", path)
		}
		return trigger(func() error { return sess.Upload(f) })()
	}
}

func (m tuiModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" {
		return m, tea.Quit
	}

	if m.screen == screenChapter {
		switch key {
		case "b", "esc":
			m.screen = screenScan
		case "left", "h":
			m.chapter = max(1, m.chapter-1)
		case "right", "l":
			m.chapter = min(len(chapter.All()), m.chapter+1)
		}
		return m, nil
	}

	sess := m.sess
	switch m.phase {
	case session.Initial:
		switch key {
		case "c":
			m.message = ""
			return m, trigger(func() error { return sess.StartCamera(context.Background()) })
		case "u":
			m.openUpload()
			return m, textinput.Blink
		case "o":
			provider := m.d.auth
			return m, func() tea.Msg { provider.SignOut(); return nil }
		}
	case session.Capturing:
		switch key {
		case " ", "enter":
			return m, trigger(sess.TakePhoto)
		case "esc":
			return m, trigger(sess.Cancel)
		}
	case session.Processing:
		if key == "esc" {
			return m, trigger(sess.Reset)
		}
	case session.Complete:
		switch key {
		case "v":
			return m, trigger(sess.ViewRecommendations)
		case "r":
			return m, trigger(sess.Reset)
		case "y":
			if m.result == nil {
				return m, nil
			}
			summary := m.result.Summary()
			return m, func() tea.Msg {
				if err := clipboard.Copy(summary); err != nil {
					log.Warnf("clipboard copy: %v", err)
					return hintMsg{text: "Copy failed: " + err.Error()}
				}
				return copiedMsg{}
			}
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	switch m.screen {
	case screenSignIn:
		return m.viewSignIn()
	case screenChapter:
		return m.viewChapter()
	}
	return m.viewScan()
}

func (m tuiModel) header() string {
	who := ""
	if u, ok := m.d.auth.CurrentUser(); ok {
		who = dimStyle.Render("  " + u.Display())
	}
	return titleStyle.Render("skinscan") + who
}

func helpLine(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+helpStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, helpStyle.Render("  ·  "))
}

func (m tuiModel) viewSignIn() string {
	lines := []string{
		m.header(),
		"",
		labelStyle.Render("Sign in to analyze your skin"),
		"",
		m.input.View(),
	}
	if m.message != "" {
		lines = append(lines, "", errStyle.Render(m.message))
	}
	lines = append(lines, "", helpLine("enter", "sign in", "esc", "quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func (m tuiModel) viewScan() string {
	img := m.image
	if img == "" {
		placeholder := "No photo yet"
		if m.phase == session.Capturing {
			placeholder = "Starting camera..."
		}
		img = lipgloss.Place(imageCols, imageRows, lipgloss.Center, lipgloss.Center, dimStyle.Render(placeholder))
	}
	left := imageBox.Render(img)

	var info []string
	info = append(info, m.header(), "")
	info = append(info, m.statusLine(), "")

	switch m.phase {
	case session.Processing:
		info = append(info, m.spinner.View()+" "+labelStyle.Render("Analyzing your photo..."))
		info = append(info, m.progress.View())
	case session.Complete:
		if m.result != nil {
			info = append(info, m.resultCard()...)
		}
	}

	if m.hint != "" {
		info = append(info, "", hintStyle.Render(m.hint))
	}
	if m.message != "" {
		info = append(info, "", errStyle.Render("⚠ "+m.message))
	}

	if m.mode == inputUpload {
		info = append(info, "", labelStyle.Render("Upload a photo"), m.input.View(),
			helpLine("enter", "analyze", "esc", "cancel"))
	} else {
		info = append(info, "", m.keysForPhase())
	}

	if table := m.d.stats.Render(); table != "" {
		info = append(info, "")
		for _, line := range strings.Split(table, "\n") {
			info = append(info, dimStyle.Render(line))
		}
	}

	info = append(info, "",
		dimStyle.Render("camera: "+m.d.deviceLabel()),
		dimStyle.Render("analyzer: "+m.d.endpointLabel()),
		helpStyle.Render("skinscan "+version),
	)

	right := lipgloss.NewStyle().
		PaddingLeft(2).
		Width(max(20, m.width-imageCols-4)).
		Render(strings.Join(info, "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m tuiModel) statusLine() string {
	switch m.phase {
	case session.Capturing:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Render("● CAMERA LIVE")
	case session.Processing:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true).Render(fmt.Sprintf("◐ PROCESSING %d%%", m.pct))
	case session.Complete:
		return okStyle.Bold(true).Render("✓ ANALYSIS COMPLETE")
	}
	return dimStyle.Render("○ READY")
}

func (m tuiModel) keysForPhase() string {
	switch m.phase {
	case session.Capturing:
		return helpLine("space", "take photo", "esc", "cancel", "q", "quit")
	case session.Processing:
		return helpLine("esc", "start over", "q", "quit")
	case session.Complete:
		return helpLine("v", "view recommendations", "y", "copy", "r", "scan again", "q", "quit")
	}
	return helpLine("c", "camera", "u", "upload", "o", "sign out", "q", "quit")
}

func (m tuiModel) resultCard() []string {
	r := m.result
	score := valueStyle.Render(fmt.Sprintf("%d/100", r.SkinScore))
	if !r.ScoreInRange() {
		score = hintStyle.Render(fmt.Sprintf("%d (outside 0-100)", r.SkinScore))
	}
	lines := []string{
		labelStyle.Render("Skin type   ") + valueStyle.Render(r.SkinType),
		labelStyle.Render("Skin score  ") + score,
	}
	if len(r.Conditions) > 0 {
		lines = append(lines, "", labelStyle.Render("Conditions"))
		for i, c := range r.Conditions {
			sev := result.Severity(i)
			lines = append(lines, "  "+c+" "+severityTint[sev].Render("("+sev+")"))
		}
	}
	if ch, ok := chapter.Get(r.RecommendedChapter); ok {
		lines = append(lines, "", labelStyle.Render("Recommended ")+valueStyle.Render(fmt.Sprintf("Chapter %d: %s", ch.Number, ch.Title)))
	}
	if m.copied {
		lines = append(lines, okStyle.Render("[✓ copied]"))
	}
	return lines
}

func (m tuiModel) viewChapter() string {
	ch, ok := chapter.Get(m.chapter)
	if !ok {
		ch, _ = chapter.Get(chapter.Default)
	}
	width := max(20, min(80, m.width-4))

	lines := []string{
		m.header(),
		"",
		dimStyle.Render(fmt.Sprintf("Chapter %d of %d", ch.Number, len(chapter.All()))),
		titleStyle.Render(ch.Title),
		"",
	}
	lines = append(lines, wrapText(ch.Description, width)...)
	if len(ch.Products) > 0 {
		lines = append(lines, "", labelStyle.Render("Suggested products"))
		for _, p := range ch.Products {
			lines = append(lines, "  • "+p)
		}
	}
	if m.result != nil && m.result.RecommendedChapter == ch.Number {
		lines = append(lines, "", okStyle.Render("Recommended for your "+strings.ToLower(m.result.SkinType)+" skin"))
	}
	lines = append(lines, "", helpLine("←/→", "browse", "b", "back", "q", "quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
