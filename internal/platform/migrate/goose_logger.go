package migrate

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// gooseSlogLogger adapts goose's Printf-style output to slog. goose prefixes
// most lines with "goose: " and reports applied files as "OK   <file>".
type gooseSlogLogger struct {
	logger *slog.Logger
}

func (l gooseSlogLogger) Printf(format string, v ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := strings.TrimSpace(strings.TrimPrefix(fmt.Sprintf(format, v...), "goose: "))
	if msg == "" {
		return
	}
	if file, ok := strings.CutPrefix(msg, "OK "); ok {
		l.logger.Info("migration applied", "component", "migrate", "file", strings.TrimSpace(file))
		return
	}
	l.logger.Info(msg, "component", "migrate")
}

// Fatalf is only reached on goose internal errors; the process cannot continue
// with a half-applied schema.
func (l gooseSlogLogger) Fatalf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if l.logger != nil {
		l.logger.Error(msg, "component", "migrate")
	}
	os.Exit(1)
}
