// Package diaglog is an append-only text log of status messages that can be
// read back as discrete entries.
//
// Each entry is written as
//
//	[SEVERITY]
//	----
//	message
//	----
//	~
//
// Message lines that start with "----", "~" or `\` are prefixed with `\` on
// write and restored on read, so no message can forge the end of an entry.
// An entry cut short by an interrupted write is terminated by the next append
// rather than merged into it.
package diaglog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/deploystore/deploystore-go/deploystore/logger"
)

const (
	Delimiter  = "----"
	Terminator = "~\n"

	// FileExt is appended to the log name by DefaultPath.
	FileExt = ".txt"

	escape   = `\`
	entryEnd = "\n" + Delimiter + "\n" + Terminator
)

type Severity int

const (
	Standard Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "STANDARD"
	}
}

func ParseSeverity(token string) (Severity, bool) {
	switch token {
	case "STANDARD":
		return Standard, true
	case "WARNING":
		return Warning, true
	case "ERROR":
		return Error, true
	}
	return Standard, false
}

type Entry struct {
	Severity Severity
	Message  string
}

type Config struct {
	// Path of the log file.
	Path string
	// EchoToConsole sends every appended message to Console.
	EchoToConsole bool
	// WriteToFile appends every message to the file at Path.
	WriteToFile bool
	// Console is the interactive channel. Defaults to a no-op logger.
	Console *zap.Logger
}

// DefaultPath places the log named name in dataRoot.
func DefaultPath(dataRoot, name string) string {
	return filepath.Join(dataRoot, name+FileExt)
}

type Log struct {
	path    string
	console *zap.Logger
	echo    atomic.Bool
	write   atomic.Bool

	// serializes appends and truncation within this process
	mu sync.Mutex
}

func New(cfg Config) *Log {
	l := &Log{path: cfg.Path, console: cfg.Console}
	if l.console == nil {
		l.console = logger.Nop()
	}
	l.echo.Store(cfg.EchoToConsole)
	l.write.Store(cfg.WriteToFile)
	return l
}

func (l *Log) Path() string { return l.path }

func (l *Log) SetEchoToConsole(on bool) { l.echo.Store(on) }
func (l *Log) SetWriteToFile(on bool)   { l.write.Store(on) }
func (l *Log) EchoesToConsole() bool    { return l.echo.Load() }
func (l *Log) WritesToFile() bool       { return l.write.Load() }

// Append records message. Failures to write the file are reported on the
// console and otherwise ignored.
func (l *Log) Append(message string, severity Severity) {
	if l.echo.Load() {
		l.echoToConsole(message, severity)
	}
	if !l.write.Load() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.appendToFile(formatEntry(message, severity)); err != nil {
		l.console.Error("unable to append to diagnostic log",
			zap.String("path", l.path), zap.Error(err))
	}
}

func (l *Log) echoToConsole(message string, severity Severity) {
	switch severity {
	case Error:
		l.console.Error(message)
	case Warning:
		l.console.Warn(message)
	default:
		l.console.Info(message)
	}
}

func (l *Log) appendToFile(entry string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	torn, err := endsTorn(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	if torn {
		// close the fragment so it does not swallow this entry
		entry = entryEnd + entry
	}
	// one write per entry so a concurrent reader never sees half a header
	if _, err := f.WriteString(entry); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// endsTorn reports whether a non-empty file does not end with a terminator.
func endsTorn(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	size := info.Size()
	if size == 0 {
		return false, nil
	}
	if size < int64(len(entryEnd)) {
		return true, nil
	}
	tail := make([]byte, len(entryEnd))
	if _, err := f.ReadAt(tail, size-int64(len(entryEnd))); err != nil {
		return false, err
	}
	return string(tail) != entryEnd, nil
}

// Clear truncates the log. A missing log is left missing.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := os.Truncate(l.path, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ParseEntries returns the message of every complete entry in write order.
func (l *Log) ParseEntries() ([]string, error) {
	records, err := l.ParseRecords()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Message
	}
	return out, nil
}

// ParseRecords returns every complete entry in write order. A trailing entry
// without its terminator, left by an interrupted write, is skipped until the
// next Append terminates it.
func (l *Log) ParseRecords() ([]Entry, error) {
	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, err
	}
	return parse(string(data)), nil
}

func parse(content string) []Entry {
	parts := strings.Split(content, entryEnd)
	// the final fragment follows the last terminator and is not an entry
	parts = parts[:len(parts)-1]

	entries := make([]Entry, 0, len(parts))
	for _, part := range parts {
		entries = append(entries, parseEntry(strings.TrimPrefix(part, "\n")))
	}
	return entries
}

func parseEntry(part string) Entry {
	header, rest, ok := strings.Cut(part, "\n")
	if !ok {
		return Entry{Severity: Standard, Message: part}
	}
	sev, known := ParseSeverity(strings.TrimSuffix(strings.TrimPrefix(header, "["), "]"))
	body, found := strings.CutPrefix(rest, Delimiter+"\n")
	if !known || !found {
		return Entry{Severity: Standard, Message: part}
	}
	return Entry{Severity: sev, Message: unescapeMessage(body)}
}

func formatEntry(message string, severity Severity) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(severity.String())
	b.WriteString("]\n")
	b.WriteString(Delimiter)
	b.WriteString("\n")
	b.WriteString(escapeMessage(message))
	b.WriteString(entryEnd)
	return b.String()
}

func escapeMessage(message string) string {
	lines := strings.Split(message, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, Delimiter) || strings.HasPrefix(line, "~") || strings.HasPrefix(line, escape) {
			lines[i] = escape + line
		}
	}
	return strings.Join(lines, "\n")
}

func unescapeMessage(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, escape)
	}
	return strings.Join(lines, "\n")
}
