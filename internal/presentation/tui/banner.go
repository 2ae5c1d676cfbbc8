package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the callgate banner to w.
func PrintBanner(w io.Writer, profile termenv.Profile) {
	lines := []struct {
		text  string
		color string
	}{
		{"            _ _             _       ", "#818cf8"},
		{"   ___ __ _| | | __ _  __ _| |_ ___ ", "#a78bfa"},
		{"  / __/ _` | | |/ _` |/ _` | __/ _ \\", "#c084fc"},
		{" | (_| (_| | | | (_| | (_| | ||  __/", "#e879f9"},
		{"  \\___\\__,_|_|_|\\__, |\\__,_|\\__\\___|", "#f472b6"},
		{"                |___/               ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(profile.Color(l.color)))
	}
	fmt.Fprintln(w)
}
