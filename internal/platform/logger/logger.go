// Package logger provides structured logging for the agent core. Every
// phase of the turn pipeline, and every collaborator it drives, is
// traceable through this.
package logger

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Logger provides leveled logging with a fixed prefix per level, color
// bracketed only when the destination is a real terminal.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a new logger instance, gating ANSI color on isatty of
// the underlying file descriptor so piped/redirected output stays plain.
func NewLogger() *Logger {
	return &Logger{
		infoLogger:  log.New(os.Stdout, prefix(os.Stdout, "34", "INFO"), log.Ldate|log.Ltime),
		warnLogger:  log.New(os.Stdout, prefix(os.Stdout, "33", "WARN"), log.Ldate|log.Ltime),
		errorLogger: log.New(os.Stderr, prefix(os.Stderr, "31", "ERROR"), log.Ldate|log.Ltime),
	}
}

func prefix(f *os.File, colorCode, label string) string {
	if isatty.IsTerminal(f.Fd()) {
		return fmt.Sprintf("\033[%sm[AUTOFROTZ-%s]\033[0m ", colorCode, label)
	}
	return fmt.Sprintf("[AUTOFROTZ-%s] ", label)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Println(msg)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Println(msg)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Println(msg)
}

// Event logs a specific turn-pipeline event, e.g. a room entered or a
// puzzle solved.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Printf("[EVENT:%s] %s | %s", eventType, actorID, details)
}

// JournalWrite logs one committed batch write with a humanized database
// size and commit latency, instead of raw byte/nanosecond counts.
func (l *Logger) JournalWrite(dbSizeBytes int64, elapsed time.Duration) {
	l.infoLogger.Printf("journal commit: db=%s latency=%s", humanize.Bytes(uint64(dbSizeBytes)), elapsed.Round(time.Millisecond))
}
