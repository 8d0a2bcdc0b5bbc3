// Package logging configures the process-wide zerolog logger and prints
// the startup banner/section headers the cmd/ binaries use, in the
// teacher's console style.
package logging

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"raknet-go/internal/config"
)

const (
	colorReset = "\033[0m"
	colorCyan  = "\033[36m"
	colorGreen = "\033[32m"
)

// Configure installs a zerolog logger onto the global log.Logger per the
// level/output/pretty settings in cfg.Logging, returning a close func for
// the log file (a no-op when logging to stdout only).
func Configure(cfg config.LoggingConfig) (close func(), err error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	var out *os.File = os.Stdout
	closeFn := func() {}
	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", cfg.OutputFile, err)
		}
		out = f
		closeFn = func() { f.Close() }
	}

	var writer zerolog.ConsoleWriter
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if cfg.Pretty {
		writer = zerolog.ConsoleWriter{Out: out}
		logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	}

	log.Logger = logger
	return closeFn, nil
}

// Banner prints the application banner, grounded on the teacher's
// pkg/logger.Banner but reduced to this protocol's own mark.
func Banner(title, version string) {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║    ____       _  __      _   _                            ║
║   |  _ \ __ _| |/ /_ __ | \ | | ___| |_                   ║
║   | |_) / _` + "`" + ` | ' /| '_ \|  \| |/ _ \ __|                  ║
║   |  _ < (_| | . \| | | | |\  |  __/ |_                    ║
║   |_| \_\__,_|_|\_\_| |_|_| \_|\___|\__|                   ║
║                                                             ║
║              %s%-45s%s║
║                    %sVersion %-7s%s                        ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, colorCyan, title, colorReset, colorGreen, version, colorReset)
}

// Section prints a section header between startup phases.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n%s╔%s╗%s\n", colorCyan, border, colorReset)
	fmt.Printf("%s║%s %-57s %s║%s\n", colorCyan, colorReset, title, colorCyan, colorReset)
	fmt.Printf("%s╚%s╝%s\n\n", colorCyan, border, colorReset)
}
