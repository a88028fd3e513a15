package game

import (
	"fmt"
	"image/color"
	"time"
)

// rgb converts a colour given per channel in [-1, 1] to RGBA.
func rgb(r, g, b float64) color.RGBA {
	return color.RGBA{R: unit(r), G: unit(g), B: unit(b), A: 255}
}

func unit(v float64) uint8 {
	return uint8(clamp01((v+1)/2) * 255)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// formatDuration formats a duration as MM:SS
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
