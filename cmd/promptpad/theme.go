package main

import (
	"github.com/charmbracelet/lipgloss"

	"promptpad/internal/popup"
)

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	title       lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	inputPanel  lipgloss.Style
	footer      lipgloss.Style
	helpText    lipgloss.Style
	placeholder lipgloss.Style
	response    lipgloss.Style
	errorText   lipgloss.Style
	statusBox   map[popup.Status]lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	amber := lipgloss.Color("#ffd166")
	bg := lipgloss.Color("#120924")
	panelBg := lipgloss.Color("#1b0f35")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	statusBase := lipgloss.NewStyle().
		Background(panelBg).
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Bold(true)

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		title: lipgloss.NewStyle().Foreground(pink).Bold(true),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		placeholder: lipgloss.NewStyle().Foreground(muted).Italic(true),
		response:    lipgloss.NewStyle().Foreground(text),
		errorText:   lipgloss.NewStyle().Foreground(pink).Bold(true),
		statusBox: map[popup.Status]lipgloss.Style{
			popup.StatusUnknown:     statusBase.BorderForeground(muted).Foreground(muted),
			popup.StatusReady:       statusBase.BorderForeground(mint).Foreground(mint),
			popup.StatusUnavailable: statusBase.BorderForeground(pink).Foreground(pink),
			popup.StatusDownloading: statusBase.BorderForeground(amber).Foreground(amber),
			popup.StatusError:       statusBase.BorderForeground(pink).Foreground(amber),
		},
	}
}

func (t uiTheme) statusStyle(status popup.Status) lipgloss.Style {
	if style, ok := t.statusBox[status]; ok {
		return style
	}
	return t.statusBox[popup.StatusUnknown]
}
