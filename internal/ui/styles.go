package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var currentTheme Theme = ThemeDark

// Dark Theme - Tokyo Night
var darkColors = struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red, Comment                lipgloss.Color
}{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Light Theme - Tokyo Night Light variant
var lightColors = struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red, Comment                lipgloss.Color
}{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// Active color variables (set by InitTheme)
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorPurple  lipgloss.Color
	ColorCyan    lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorOrange  lipgloss.Color
	ColorRed     lipgloss.Color
	ColorComment lipgloss.Color
)

// themeMu protects global color/style variables during live theme switches.
var themeMu sync.RWMutex

// InitTheme sets the active color palette based on theme name.
// Must be called before any UI rendering.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	if theme == "light" {
		currentTheme = ThemeLight
		ColorBg = lightColors.Bg
		ColorSurface = lightColors.Surface
		ColorBorder = lightColors.Border
		ColorText = lightColors.Text
		ColorTextDim = lightColors.TextDim
		ColorAccent = lightColors.Accent
		ColorPurple = lightColors.Purple
		ColorCyan = lightColors.Cyan
		ColorGreen = lightColors.Green
		ColorYellow = lightColors.Yellow
		ColorOrange = lightColors.Orange
		ColorRed = lightColors.Red
		ColorComment = lightColors.Comment
	} else {
		currentTheme = ThemeDark
		ColorBg = darkColors.Bg
		ColorSurface = darkColors.Surface
		ColorBorder = darkColors.Border
		ColorText = darkColors.Text
		ColorTextDim = darkColors.TextDim
		ColorAccent = darkColors.Accent
		ColorPurple = darkColors.Purple
		ColorCyan = darkColors.Cyan
		ColorGreen = darkColors.Green
		ColorYellow = darkColors.Yellow
		ColorOrange = darkColors.Orange
		ColorRed = darkColors.Red
		ColorComment = darkColors.Comment
	}
	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	return currentTheme
}

func init() {
	InitTheme("dark")
}

// Base Styles
var (
	TitleStyle     lipgloss.Style
	PanelStyle     lipgloss.Style
	FocusedPanel   lipgloss.Style
	HighlightStyle lipgloss.Style
	DimStyle       lipgloss.Style
	ErrorStyle     lipgloss.Style
	SuccessStyle   lipgloss.Style
	WarningStyle   lipgloss.Style
	InfoStyle      lipgloss.Style
)

// Status Indicator Styles
var (
	RunningStyle   lipgloss.Style
	StartingStyle  lipgloss.Style
	StoppingStyle  lipgloss.Style
	IdleStyle      lipgloss.Style
	ErrIndicator   lipgloss.Style
	StaleDataStyle lipgloss.Style
)

// Menu Bar Styles
var (
	MenuBarStyle       lipgloss.Style
	MenuKeyStyle       lipgloss.Style
	MenuDescStyle      lipgloss.Style
	MenuSeparatorStyle lipgloss.Style
)

// List Item Styles
var (
	BoxItemStyle         lipgloss.Style
	BoxItemSelectedStyle lipgloss.Style
	ViewerItemStyle      lipgloss.Style
	ViewerSelectedStyle  lipgloss.Style
	TreeConnectorStyle   lipgloss.Style
	CountStyle           lipgloss.Style
)

// Filter Styles
var (
	FilterBoxStyle    lipgloss.Style
	FilterPromptStyle lipgloss.Style
	FilterMatchStyle  lipgloss.Style
)

// Detail Pane Styles
var (
	DetailTitleStyle  lipgloss.Style
	DetailHeaderStyle lipgloss.Style
	DetailMetaStyle   lipgloss.Style
	TabActiveStyle    lipgloss.Style
	TabInactiveStyle  lipgloss.Style
	LogLineStyle      lipgloss.Style
	ChatAuthorStyle   lipgloss.Style
	ChatTextStyle     lipgloss.Style
)

// Severity Styles
var (
	SeverityOkStyle       lipgloss.Style
	SeverityWarnStyle     lipgloss.Style
	SeverityCriticalStyle lipgloss.Style
	CriticalBannerStyle   lipgloss.Style
)

func initStyles() {
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent).
		Background(ColorSurface).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)

	FocusedPanel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1)

	HighlightStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true)

	DimStyle = lipgloss.NewStyle().
		Foreground(ColorComment)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true)

	SuccessStyle = lipgloss.NewStyle().
		Foreground(ColorGreen).
		Bold(true)

	WarningStyle = lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true)

	InfoStyle = lipgloss.NewStyle().
		Foreground(ColorCyan)

	RunningStyle = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	StartingStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StoppingStyle = lipgloss.NewStyle().Foreground(ColorOrange).Bold(true)
	IdleStyle = lipgloss.NewStyle().Foreground(ColorComment)
	ErrIndicator = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	StaleDataStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	MenuBarStyle = lipgloss.NewStyle().
		Background(ColorSurface).
		Foreground(ColorText).
		Padding(0, 1)

	MenuKeyStyle = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	MenuDescStyle = lipgloss.NewStyle().
		Foreground(ColorText)

	MenuSeparatorStyle = lipgloss.NewStyle().
		Foreground(ColorBorder)

	BoxItemStyle = lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)
	BoxItemSelectedStyle = lipgloss.NewStyle().Foreground(ColorBg).Background(ColorAccent).Bold(true)
	ViewerItemStyle = lipgloss.NewStyle().Foreground(ColorText)
	ViewerSelectedStyle = lipgloss.NewStyle().Foreground(ColorBg).Background(ColorAccent).Bold(true)
	TreeConnectorStyle = lipgloss.NewStyle().Foreground(ColorBorder)
	CountStyle = lipgloss.NewStyle().Foreground(ColorTextDim)

	FilterBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1).
		Foreground(ColorText)

	FilterPromptStyle = lipgloss.NewStyle().
		Foreground(ColorPurple).
		Bold(true)

	FilterMatchStyle = lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true)

	DetailTitleStyle = lipgloss.NewStyle().
		Foreground(ColorCyan).
		Bold(true).
		Underline(true)

	DetailHeaderStyle = lipgloss.NewStyle().
		Foreground(ColorPurple).
		Bold(true)

	DetailMetaStyle = lipgloss.NewStyle().
		Foreground(ColorComment).
		Italic(true)

	TabActiveStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorCyan).
		Padding(0, 1).
		Bold(true)
	TabInactiveStyle = lipgloss.NewStyle().
		Foreground(ColorTextDim).
		Background(ColorSurface).
		Padding(0, 1)

	LogLineStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	ChatAuthorStyle = lipgloss.NewStyle().Foreground(ColorPurple).Bold(true)
	ChatTextStyle = lipgloss.NewStyle().Foreground(ColorText)

	SeverityOkStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	SeverityWarnStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	SeverityCriticalStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	CriticalBannerStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorRed).
		Bold(true).
		Padding(0, 1)
}

// MenuKey creates a formatted menu item with key and description
func MenuKey(key, description string) string {
	return MenuKeyStyle.Render(key) + " " +
		MenuSeparatorStyle.Render("•") + " " +
		MenuDescStyle.Render(description)
}

// StatusIndicator returns a styled status symbol.
// Standard symbols: ● running, ⟳ starting, ◑ stopping, ○ idle, ✕ error
func StatusIndicator(status fleet.Status) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	switch status {
	case fleet.StatusRunning:
		return RunningStyle.Render("●")
	case fleet.StatusStarting:
		return StartingStyle.Render("⟳")
	case fleet.StatusStopping:
		return StoppingStyle.Render("◑")
	case fleet.StatusError:
		return ErrIndicator.Render("✕")
	default:
		return IdleStyle.Render("○")
	}
}

// SeverityStyle returns the style for a resource severity level.
func SeverityStyle(sev fleet.Severity) lipgloss.Style {
	themeMu.RLock()
	defer themeMu.RUnlock()
	switch sev {
	case fleet.SeverityCritical:
		return SeverityCriticalStyle
	case fleet.SeverityWarn:
		return SeverityWarnStyle
	default:
		return SeverityOkStyle
	}
}
