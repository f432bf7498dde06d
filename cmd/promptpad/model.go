package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"go.uber.org/zap"

	"promptpad/internal/popup"
)

const (
	placeholderOutput = "Response will appear here..."
	generatingOutput  = "Generating..."
	inputCharLimit    = 8000
	inputHeight       = 4
)

type outputKind int

const (
	outputPlaceholder outputKind = iota
	outputGenerating
	outputResponse
	outputError
)

type probeDoneMsg struct {
	report popup.Report
}

type sessionDoneMsg struct {
	err error
}

type replyMsg struct {
	reply popup.Reply
	err   error
}

type model struct {
	ctrl   *popup.Controller
	cfg    appConfig
	logger *zap.Logger

	report     popup.Report
	outputText string
	outputKind outputKind
	inflight   bool

	width  int
	height int

	input   textarea.Model
	output  viewport.Model
	spinner spinner.Model
	keys    keyMap

	theme uiTheme
}

func newModel(ctrl *popup.Controller, cfg appConfig, logger *zap.Logger) model {
	keys := newKeyMap()

	input := textarea.New()
	input.Placeholder = "Ask the model anything. Enter sends, Alt+Enter adds a line."
	input.CharLimit = inputCharLimit
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline = keys.Newline
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	output := viewport.New(0, 0)
	output.MouseWheelEnabled = true
	output.MouseWheelDelta = 4

	if logger == nil {
		logger = zap.NewNop()
	}

	return model{
		ctrl:       ctrl,
		cfg:        cfg,
		logger:     logger,
		report:     ctrl.Report(),
		outputText: placeholderOutput,
		outputKind: outputPlaceholder,
		input:      input,
		output:     output,
		spinner:    sp,
		keys:       keys,
		theme:      newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textarea.Blink,
		m.probeCmd(),
	)
}

func (m model) probeCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return probeDoneMsg{report: ctrl.Probe(context.Background())}
	}
}

func (m model) ensureSessionCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		_, err := ctrl.EnsureSession(context.Background())
		return sessionDoneMsg{err: err}
	}
}

func (m model) sendCmd(prompt string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		reply, err := ctrl.Send(context.Background(), prompt)
		return replyMsg{reply: reply, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case probeDoneMsg:
		m.report = msg.report
		if msg.report.Status == popup.StatusReady && m.cfg.eagerSession {
			cmds = append(cmds, m.ensureSessionCmd())
		}
	case sessionDoneMsg:
		if msg.err != nil {
			m.logger.Debug("eager session failed", zap.Error(msg.err))
		}
		m.report = m.ctrl.Report()
	case replyMsg:
		m.inflight = false
		m.report = m.ctrl.Report()
		if msg.reply.Stale {
			m.logger.Debug("discarding stale reply", zap.Uint64("generation", msg.reply.Generation))
			break
		}
		if msg.err != nil {
			m.setOutput(outputError, popup.DisplayText(msg.err))
			break
		}
		m.setOutput(outputResponse, msg.reply.Text)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			m.clearAll()
			return m, tea.Batch(cmds...)
		case key.Matches(msg, m.keys.ScrollUp):
			m.output.LineUp(8)
			return m, tea.Batch(cmds...)
		case key.Matches(msg, m.keys.ScrollDown):
			m.output.LineDown(8)
			return m, tea.Batch(cmds...)
		case key.Matches(msg, m.keys.Send):
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// submit is the only path from a key press to Controller.Send. It refuses to
// start a second exchange while one is in flight.
func (m *model) submit() tea.Cmd {
	if m.inflight {
		return nil
	}
	raw := m.input.Value()
	if strings.TrimSpace(raw) == "" {
		m.setOutput(outputError, popup.DisplayText(popup.ErrEmptyPrompt))
		return nil
	}
	if !m.report.SendEnabled {
		m.setOutput(outputError, popup.DisplayText(popup.ErrSendDisabled))
		return nil
	}
	m.inflight = true
	m.setOutput(outputGenerating, generatingOutput)
	return m.sendCmd(raw)
}

func (m *model) clearAll() {
	m.ctrl.Clear()
	m.input.Reset()
	m.setOutput(outputPlaceholder, placeholderOutput)
}

func (m *model) setOutput(kind outputKind, text string) {
	m.outputKind = kind
	m.outputText = text
	m.renderOutput()
	m.output.GotoTop()
}

func (m *model) renderOutput() {
	width := maxInt(10, m.output.Width)
	body := wordwrap.String(m.outputText, width)
	switch m.outputKind {
	case outputPlaceholder, outputGenerating:
		body = m.theme.placeholder.Render(body)
	case outputError:
		body = m.theme.errorText.Render(body)
	default:
		body = m.theme.response.Render(body)
	}
	m.output.SetContent(body)
}

func (m *model) resize() {
	contentWidth := maxInt(30, m.width-6)
	m.input.SetWidth(contentWidth - 2)
	// header 3, status 3, input panel inputHeight+3, output chrome 3, footer 4
	outputHeight := maxInt(3, m.height-(3+3+inputHeight+3+3+4)-2)
	m.output.Width = contentWidth - 2
	m.output.Height = outputHeight
	m.renderOutput()
}

func (m model) View() string {
	header := m.renderHeader()
	status := m.renderStatus()
	input := m.renderInput()
	output := m.renderOutputPanel()
	footer := m.renderFooter()
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, status, input, output, footer))
}

func (m model) contentWidth() int {
	return maxInt(30, m.width-4)
}

func (m model) renderHeader() string {
	title := m.theme.title.Render("promptpad")
	meta := m.theme.helpText.Render(fmt.Sprintf("  backend: %s", nullCoalesce(m.cfg.backendLabel, "none")))
	return m.theme.header.Width(m.contentWidth()).Render(title + meta)
}

func (m model) renderStatus() string {
	line := statusLine(m.report)
	return m.theme.statusStyle(m.report.Status).Width(m.contentWidth()).Render(compactSingleLine(line, maxInt(20, m.contentWidth()-4)))
}

func (m model) renderInput() string {
	view := m.input.View()
	if !m.report.SendEnabled {
		view = m.theme.helpText.Render("Sending disabled: "+m.report.Message) + "\n" + view
	}
	return m.theme.inputPanel.Width(m.contentWidth()).Render(view)
}

func (m model) renderOutputPanel() string {
	title := m.theme.panelTitle.Render("Response")
	if m.inflight {
		title += " " + m.spinner.View()
	}
	return m.theme.panel.Width(m.contentWidth()).Render(title + "\n" + m.output.View())
}

func (m model) renderFooter() string {
	hints := make([]string, 0, len(m.keys.hints()))
	for _, b := range m.keys.hints() {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	return m.theme.footer.Width(m.contentWidth()).Render(m.theme.helpText.Render("Keys: " + strings.Join(hints, " · ")))
}

// statusLine is the indicator text: icon then message.
func statusLine(r popup.Report) string {
	return r.Status.Icon() + " " + r.Message
}
