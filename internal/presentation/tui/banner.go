package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"     _           _     __ _",
	"  __| | ___  ___| | __/ _| | _____      __",
	" / _` |/ _ \\/ __| |/ / |_| |/ _ \\ \\ /\\ / /",
	"| (_| |  __/ (__|   <|  _| | (_) \\ V  V /",
	" \\__,_|\\___|\\___|_|\\_\\_| |_|\\___/ \\_/\\_/",
}

var bannerColors = []string{"#f59e0b", "#f97316", "#ef4444", "#ec4899", "#a855f7"}

// PrintBanner writes the deckflow banner to w, coloured when the terminal supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i%len(bannerColors)])))
	}
	fmt.Fprintln(w)
}

// Dim renders s faintly for secondary output such as hints and phase changes.
func Dim(w io.Writer, s string) string {
	return termenv.NewOutput(w).String(s).Faint().String()
}
