package main

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// cellStyles caches one style per fg/bg pair; a face photo has far fewer
// distinct pairs than cells once colors are quantized.
type cellStyles map[[2]color.RGBA]lipgloss.Style

func quantize(c color.Color) color.RGBA {
	r, g, b, _ := c.RGBA()
	// 32 levels per channel
	return color.RGBA{uint8(r>>8) &^ 7, uint8(g>>8) &^ 7, uint8(b>>8) &^ 7, 255}
}

func hex(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

func (cs cellStyles) get(top, bot color.RGBA) lipgloss.Style {
	key := [2]color.RGBA{top, bot}
	if st, ok := cs[key]; ok {
		return st
	}
	st := lipgloss.NewStyle().Foreground(hex(top)).Background(hex(bot))
	cs[key] = st
	return st
}

// renderHalfBlock draws img with one "▀" per two pixel rows: the upper
// pixel is the foreground, the lower one the background.
func renderHalfBlock(img image.Image) string {
	if img == nil {
		return ""
	}
	b := img.Bounds()
	styles := cellStyles{}
	var out strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			top := quantize(img.At(x, y))
			bot := top
			if y+1 < b.Max.Y {
				bot = quantize(img.At(x, y+1))
			}
			out.WriteString(styles.get(top, bot).Render("▀"))
		}
		if y+2 < b.Max.Y {
			out.WriteString("\n")
		}
	}
	return out.String()
}
