// Package logger wraps a logrus.Logger with the banner/section
// presentation helpers the teacher's hand-rolled ANSI logger offered,
// adapted onto structured logging (fields instead of color codes,
// level-gated Entry logging instead of a package-level default with
// inlined ColorXxx constants).
package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// New constructs a logrus.Logger configured the way this project's
// structured logging replaces the teacher's showTime/timeFormat
// knobs: a text formatter with full timestamps, level set from
// levelName (any logrus.ParseLevel string; invalid values fall back
// to Info).
func New(levelName string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// Section prints a section header to stderr, kept from the teacher's
// pkg/logger.Section for start-up phase markers (listener bound,
// world opened, ...) where a structured log line would be less
// readable than a banner.
func Section(title string) {
	const border = "═══════════════════════════════════════════════════════════"
	fmt.Fprintf(os.Stderr, "\n╔%s╗\n", border)
	fmt.Fprintf(os.Stderr, "║ %-57s ║\n", title)
	fmt.Fprintf(os.Stderr, "╚%s╝\n\n", border)
}

// Banner prints the application's start-up banner, kept from the
// teacher's pkg/logger.Banner with the SA-MP ASCII art swapped for a
// plain title/version line.
func Banner(title, version string) {
	fmt.Fprintf(os.Stderr, "\n=== %s ===\nversion %s\n\n", title, version)
}
