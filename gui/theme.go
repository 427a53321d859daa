//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// warmTheme is the default dark theme with a skin-tone accent.
type warmTheme struct{}

var (
	accent     = color.NRGBA{R: 0xC7, G: 0x7D, B: 0x5A, A: 0xFF}
	background = color.NRGBA{R: 0x1A, G: 0x16, B: 0x14, A: 0xFF}
	foreground = color.NRGBA{R: 0xEE, G: 0xE4, B: 0xDC, A: 0xFF}
)

func (warmTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return background
	case theme.ColorNameForeground:
		return foreground
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return accent
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (warmTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (warmTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (warmTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
