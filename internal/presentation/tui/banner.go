package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner shown by long-running commands.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	// Gradient from indigo to violet, top to bottom.
	s1 := termenv.String("            _             ").Foreground(p.Color("#818cf8"))
	s2 := termenv.String("  __ _ _ __| |__  ___ _ _ ").Foreground(p.Color("#a78bfa"))
	s3 := termenv.String(" / _` | '__| '_ \\/ _ \\ '_|").Foreground(p.Color("#c084fc"))
	s4 := termenv.String(" \\__,_|_|  |_.__/\\___/_|  ").Foreground(p.Color("#e879f9"))
	tag := termenv.String("  v" + version).Foreground(p.Color("#f472b6"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(tag)
	fmt.Println()
}
