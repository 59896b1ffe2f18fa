package schema

import "strings"

// DefaultTheme is the editor theme used when none is stored.
const DefaultTheme ThemeName = "vs-dark"

// DefaultFontSize is the editor font size used when none is stored.
const DefaultFontSize = 14

// Settings is the persisted editor configuration.
type Settings struct {
	Theme    ThemeName `json:"theme"`
	FontSize int       `json:"fontSize"`
}

// DefaultSettings returns the settings written on first start.
func DefaultSettings() Settings {
	return Settings{Theme: DefaultTheme, FontSize: DefaultFontSize}
}

// NormalizeSettings coerces missing or out-of-range values to defaults.
func NormalizeSettings(s Settings) Settings {
	s.Theme = ThemeName(strings.TrimSpace(string(s.Theme)))
	if s.Theme == "" {
		s.Theme = DefaultTheme
	}
	if s.FontSize <= 0 {
		s.FontSize = DefaultFontSize
	}
	return s
}
