// Package log defines the logger engine of the deployer.
// A logger can create a child logger derived from the parent logger.
// Each logger keeps a unique color style for its prefix.
//
// Create a child logger for every package that the command is calling.
package log

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/gamut"
)

// Logger is the wrapper over the charmbracelet logger and keeps the style.
// The style is generated randomly.
type Logger struct {
	logger log.Logger
	style  LoggerStyle
}

// LoggerStyle defines the colors for each log part.
type LoggerStyle struct {
	prefix    lipgloss.Style
	separator lipgloss.Style
}

func randomStyle() (LoggerStyle, error) {
	rawPalette, err := gamut.Generate(2, gamut.PastelGenerator{})
	if err != nil {
		return LoggerStyle{}, fmt.Errorf("gamut.Generate: %w", err)
	}
	palette := make([]lipgloss.Color, len(rawPalette))
	for i, raw := range rawPalette {
		lighter := gamut.Lighter(raw, 0.05)
		palette[i] = lipgloss.Color(gamut.ToHex(lighter))
	}

	// transparent background
	backgroundColor := lipgloss.Color("49m")

	style := LoggerStyle{}
	style.prefix = lipgloss.NewStyle().
		Bold(true).
		Faint(true).
		Background(backgroundColor).
		Foreground(palette[0])
	style.separator = lipgloss.NewStyle().
		Faint(true).
		Background(backgroundColor).
		Foreground(palette[1])

	return style, nil
}

func (style LoggerStyle) setPrimary() {
	log.PrefixStyle = style.prefix
	log.SeparatorStyle = style.separator
}

// New logger with the prefix and optionally the timestamp.
func New(prefix string, timestamp bool) (*Logger, error) {
	style, err := randomStyle()
	if err != nil {
		return nil, fmt.Errorf("randomStyle: %w", err)
	}

	logger := log.New()
	logger.SetPrefix(prefix)
	logger.SetReportCaller(false)
	logger.SetReportTimestamp(timestamp)

	return &Logger{
		logger: logger,
		style:  style,
	}, nil
}

// SetDebug switches the debug messages on or off.
func (logger *Logger) SetDebug(enabled bool) {
	if enabled {
		logger.logger.SetLevel(log.DebugLevel)
	} else {
		logger.logger.SetLevel(log.InfoLevel)
	}
}

// Prefix of the logger. The child loggers include the parent prefix.
func (logger *Logger) Prefix() string {
	return logger.logger.GetPrefix()
}

func (logger *Logger) Debug(title string, kv ...interface{}) {
	logger.style.setPrimary()
	logger.logger.Debug(title, kv...)
}

// Info prints the information
func (logger *Logger) Info(title string, kv ...interface{}) {
	logger.style.setPrimary()
	logger.logger.Info(title, kv...)
}

// Warn prints the warning message
func (logger *Logger) Warn(title string, kv ...interface{}) {
	logger.style.setPrimary()
	logger.logger.Warn(title, kv...)
}

// Error prints the error message
func (logger *Logger) Error(title string, kv ...interface{}) {
	logger.style.setPrimary()
	logger.logger.Error(title, kv...)
}

// Fatal prints the error message and then calls os.Exit()
func (logger *Logger) Fatal(title string, kv ...interface{}) {
	logger.style.setPrimary()
	logger.logger.Fatal(title, kv...)
}

// Child logger from the parent. The child shares the parent's level and style.
//
// For example:
//
//	parent, _ := log.New("authdeploy", false)
//	rpc := parent.Child("client")
//	deployer := parent.Child("deployer", "contract", "AuthContract")
//
//	parent.Info("starting")
//	rpc.Info("dialing", "url", url)
//	deployer.Info("sent")
//
//	// prints the following
//	// INFO authdeploy: starting
//	// INFO authdeploy/client: dialing url=https://...
//	// INFO authdeploy/deployer: sent contract=AuthContract
func (logger *Logger) Child(prefix string, kv ...interface{}) *Logger {
	child := logger.logger.With(kv...)
	child.SetPrefix(logger.logger.GetPrefix() + "/" + prefix)

	return &Logger{
		logger: child,
		style:  logger.style,
	}
}
