// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/rigchat/internal/model"
)

// Colors are disabled for non-TTY output and when NO_COLOR is set.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// DisableColors switches all styles to plain text (--no-color).
func DisableColors() {
	colorsEnabledOnce.Do(func() {})
	colorsEnabled = false
	lipgloss.SetColorProfile(termenv.Ascii)
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))
)

// Message role headers.
var (
	UserStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	AssistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	SystemStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214"))
)

// RoleStyle returns the header style for a message role.
func RoleStyle(r model.Role) lipgloss.Style {
	switch r {
	case model.RoleUser:
		return UserStyle
	case model.RoleAssistant:
		return AssistantStyle
	default:
		return SystemStyle
	}
}

// RenderSeparator renders a horizontal rule. Default width is 70.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("─", w))
}

// RenderLabel renders a "label: value" line with the label padded.
func RenderLabel(label, value string) string {
	return LabelStyle.Render(padRight(label+":", 18)) + " " + ValueStyle.Render(value)
}
