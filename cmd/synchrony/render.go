package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/mat"
)

const heatmapLevels = 6

var (
	// Cool to hot, 256-colour palette.
	heatmapPalette = [heatmapLevels]lipgloss.Color{"17", "25", "37", "71", "178", "196"}

	heatLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(8)
	heatNaNStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	heatTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
)

// renderHeatmap draws the matrix as coloured blocks with the value range
// mapped onto a fixed palette. NaN cells are drawn as dots.
func renderHeatmap(m mat.Matrix, labels []string) string {
	rows, cols := m.Dims()
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range rows {
		for j := range cols {
			v := m.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}

	var b strings.Builder
	b.WriteString(heatTitleStyle.Render(fmt.Sprintf("pairwise likelihood [%.3f, %.3f]", lo, hi)))
	b.WriteByte('\n')
	for i := range rows {
		b.WriteString(heatLabelStyle.Render(truncate(labels[i], 7)))
		for j := range cols {
			v := m.At(i, j)
			if math.IsNaN(v) {
				b.WriteString(heatNaNStyle.Render(" ·"))
				continue
			}
			style := lipgloss.NewStyle().Foreground(heatmapPalette[level(v, lo, hi)])
			b.WriteString(style.Render("██"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// level maps v in [lo, hi] onto a palette index.
func level(v, lo, hi float64) int {
	if !(hi > lo) {
		return heatmapLevels - 1
	}
	i := int((v - lo) / (hi - lo) * heatmapLevels)
	return max(0, min(heatmapLevels-1, i))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
