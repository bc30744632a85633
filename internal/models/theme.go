package models

// Theme is the user's color scheme preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Themes lists every value offered by the theme control group.
var Themes = []Theme{ThemeSystem, ThemeLight, ThemeDark}

// ThemeAttribute is the document attribute a theme is applied to.
const ThemeAttribute = "data-theme"
