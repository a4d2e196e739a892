package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Options controls where a Logger writes.
type Options struct {
	// Terminal receives the coloured human readable line. Defaults to stdout.
	Terminal io.Writer
	// Dir is the directory for the daily JSON log file. Empty disables the file sink.
	Dir string
	// Prefix names the log file, e.g. "livestream" -> livestream-2006-01-02.log
	Prefix       string
	MinLevel     LogLevel
	ColorEnabled bool
}

type Logger struct {
	mu           sync.Mutex
	terminal     io.Writer
	logFile      *os.File
	minLevel     LogLevel
	colorEnabled bool
	exit         func(int)
}

func NewLogger() *Logger {
	l, err := New(Options{
		Terminal:     os.Stdout,
		Dir:          "logs",
		Prefix:       "livestream",
		MinLevel:     DEBUG,
		ColorEnabled: true,
	})
	if err != nil {
		log.Fatal("Failed to initialise logger:", err)
	}

	l.Info("LOGGER", "Enhanced logging system initialized")
	if l.logFile != nil {
		l.Info("LOGGER", fmt.Sprintf("Log file: %s", l.logFile.Name()))
	}
	return l
}

func New(opts Options) (*Logger, error) {
	if opts.Terminal == nil {
		opts.Terminal = os.Stdout
	}
	if opts.Prefix == "" {
		opts.Prefix = "livestream"
	}

	l := &Logger{
		terminal:     opts.Terminal,
		minLevel:     opts.MinLevel,
		colorEnabled: opts.ColorEnabled,
		exit:         os.Exit,
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create logs directory: %w", err)
		}
		name := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", opts.Prefix, time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.logFile = f
	}

	return l, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	l, _ := New(Options{Terminal: io.Discard, MinLevel: FATAL + 1})
	return l
}

func (lv LogLevel) String() string {
	switch lv {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

type palette struct {
	level, category *color.Color
}

var (
	palettes = map[LogLevel]palette{
		DEBUG: {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
		INFO:  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
		WARN:  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
		ERROR: {color.New(color.FgRed), color.New(color.FgRed, color.Bold)},
		FATAL: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
	}
	clockColor  = color.New(color.FgBlue)
	sourceColor = color.New(color.FgMagenta)
)

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
	}
	if _, file, line, ok := runtime.Caller(3); ok {
		entry.File, entry.Line = filepath.Base(file), line
	}

	line := l.render(level, entry)
	encoded, _ := json.Marshal(entry)

	l.mu.Lock()
	defer l.mu.Unlock()

	io.WriteString(l.terminal, line)
	if l.logFile != nil {
		l.logFile.Write(append(encoded, '\n'))
	}
}

// render builds the terminal line: clock, level, [CATEGORY], message, source.
func (l *Logger) render(level LogLevel, entry LogEntry) string {
	clock := entry.Timestamp[11:19]
	lvl := fmt.Sprintf("%-5s", entry.Level)
	cat := fmt.Sprintf("[%-10s]", entry.Category)
	src := ""
	if entry.File != "" && entry.Line > 0 {
		src = fmt.Sprintf(" (%s:%d)", entry.File, entry.Line)
	}

	if l.colorEnabled {
		p, ok := palettes[level]
		if !ok {
			p = palettes[INFO]
		}
		clock = clockColor.Sprint(clock)
		lvl = p.level.Sprint(lvl)
		cat = p.category.Sprint(cat)
		if src != "" {
			src = sourceColor.Sprint(src)
		}
	}
	return clock + " " + lvl + " " + cat + " " + entry.Message + src + "\n"
}

// The wrappers below keep the caller depth identical for runtime.Caller.

func (l *Logger) Debug(category, message string) {
	l.emit(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.emit(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.emit(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.emit(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.emit(FATAL, category, message)
	l.exit(1)
}

func (l *Logger) emit(level LogLevel, category, message string) {
	l.log(level, category, message)
}

// Category helpers.
func (l *Logger) LogPurchase(action, purchaseID, message string) {
	l.emit(INFO, "PURCHASE", fmt.Sprintf("[%s] %s - %s", action, purchaseID, message))
}

func (l *Logger) LogWebhook(eventType, message string) {
	l.emit(INFO, "WEBHOOK", fmt.Sprintf("[%s] %s", eventType, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.emit(INFO, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.emit(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.emit(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

// LogSecurity records authenticity failures: bad webhook signatures, tampered tokens.
func (l *Logger) LogSecurity(event, message string) {
	l.emit(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

// LogAnomaly records state that should not happen in normal flow but is not fatal,
// such as a refund for a purchase that was never completed.
func (l *Logger) LogAnomaly(kind, message string) {
	l.emit(WARN, "ANOMALY", fmt.Sprintf("[%s] %s", kind, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
