// Package styles defines the shared lipgloss color and style tokens.
package styles

import "github.com/charmbracelet/lipgloss"

// Color tokens. Adaptive so both light and dark terminals stay readable.
var (
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#1A1A2E", Dark: "#CDD6F4"}
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#6C7086"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"}
	StatusWarnColor    = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#F9E2AF"}
	StatusOKColor      = lipgloss.AdaptiveColor{Light: "#40A02B", Dark: "#A6E3A1"}
	OverlayBorderColor = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"}
	OverlayTitleColor  = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"}
	HighlightColor     = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}
)

// Shared styles.
var (
	SelectionIndicatorStyle = lipgloss.NewStyle().Bold(true).Foreground(HighlightColor).SetString("> ")
	FieldLabelStyle         = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)
	FieldErrorStyle         = lipgloss.NewStyle().Foreground(StatusErrorColor)
	BannerErrorStyle        = lipgloss.NewStyle().Bold(true).Foreground(StatusErrorColor)
	BannerWarnStyle         = lipgloss.NewStyle().Foreground(StatusWarnColor)
	HintStyle               = lipgloss.NewStyle().Foreground(TextMutedColor)
	OptionStyle             = lipgloss.NewStyle().PaddingLeft(2)
	OptionHighlightStyle    = lipgloss.NewStyle().Bold(true).Foreground(HighlightColor)
	NewValueStyle           = lipgloss.NewStyle().Italic(true).Foreground(StatusOKColor)
)
