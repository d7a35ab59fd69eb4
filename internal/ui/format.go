package ui

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// FormatTime renders t as a 12-hour clock with two-digit fields, e.g. "03:04 PM".
func FormatTime(t time.Time) string {
	return t.Local().Format("03:04 PM")
}

var authorPalette = []lipgloss.Color{
	"#F87171", // red
	"#FB923C", // orange
	"#FBBF24", // amber
	"#34D399", // emerald
	"#22D3EE", // cyan
	"#60A5FA", // blue
	"#A78BFA", // violet
	"#F472B6", // pink
}

// UserColor picks a stable colour for an author name.
func UserColor(name string) lipgloss.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return authorPalette[h.Sum32()%uint32(len(authorPalette))]
}

// OnlineText describes how many users are present.
func OnlineText(n int) string {
	switch {
	case n <= 0:
		return "Offline"
	case n == 1:
		return "One user online"
	default:
		return strconv.Itoa(n) + " users online"
	}
}
