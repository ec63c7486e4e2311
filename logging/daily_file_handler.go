package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// dailyFile is shared by a handler and every handler derived from it with
// WithAttrs/WithGroup, so they all rotate and write through one file.
type dailyFile struct {
	mutex           sync.Mutex
	logDir          string
	prefix          string
	currentFile     *os.File
	currentFileName string
	now             func() time.Time
}

type DailyFileHandler struct {
	file           *dailyFile
	attrs          string
	group          string
	defaultHandler slog.Handler
}

// NewDailyFileHandler writes one log file per day under logDir, named
// <prefix>-YYYY-MM-DD.log, and mirrors every record to stdout.
func NewDailyFileHandler(logDir, prefix string, opts *slog.HandlerOptions) (*DailyFileHandler, error) {
	return newDailyFileHandler(logDir, prefix, os.Stdout, opts)
}

func newDailyFileHandler(logDir, prefix string, stdout io.Writer, opts *slog.HandlerOptions) (*DailyFileHandler, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	h := &DailyFileHandler{
		file: &dailyFile{
			logDir: logDir,
			prefix: prefix,
			now:    time.Now,
		},
		defaultHandler: slog.NewTextHandler(stdout, opts),
	}

	if err := h.file.rotateIfNeeded(); err != nil {
		return nil, err
	}

	return h, nil
}

func (f *dailyFile) rotateIfNeeded() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	fileName := fmt.Sprintf("%s-%s.log", f.prefix, f.now().Format("2006-01-02"))
	if fileName == f.currentFileName {
		return nil
	}

	if f.currentFile != nil {
		f.currentFile.Close()
	}

	file, err := os.OpenFile(filepath.Join(f.logDir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	f.currentFile = file
	f.currentFileName = fileName
	return nil
}

func (f *dailyFile) write(line string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	_, err := f.currentFile.WriteString(line)
	return err
}

// Close closes the current log file.
func (h *DailyFileHandler) Close() error {
	h.file.mutex.Lock()
	defer h.file.mutex.Unlock()
	if h.file.currentFile == nil {
		return nil
	}
	err := h.file.currentFile.Close()
	h.file.currentFile = nil
	h.file.currentFileName = ""
	return err
}

func (h *DailyFileHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.file.rotateIfNeeded(); err != nil {
		// If rotation fails, at least log to stdout
		return h.defaultHandler.Handle(ctx, r)
	}

	timeStr := r.Time.Format("2006/01/02 15:04:05.000")

	var b strings.Builder
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		b.WriteString(" " + h.qualify(a.Key) + "=" + a.Value.String())
		return true
	})

	err := h.file.write(fmt.Sprintf("[%s] %-5s %s%s\n", timeStr, r.Level.String(), r.Message, b.String()))

	if err2 := h.defaultHandler.Handle(ctx, r); err2 != nil {
		if err == nil {
			err = err2
		}
	}

	return err
}

func (h *DailyFileHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *DailyFileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		b.WriteString(" " + h.qualify(a.Key) + "=" + a.Value.String())
	}
	return &DailyFileHandler{
		file:           h.file,
		attrs:          b.String(),
		group:          h.group,
		defaultHandler: h.defaultHandler.WithAttrs(attrs),
	}
}

func (h *DailyFileHandler) WithGroup(name string) slog.Handler {
	return &DailyFileHandler{
		file:           h.file,
		attrs:          h.attrs,
		group:          h.qualify(name),
		defaultHandler: h.defaultHandler.WithGroup(name),
	}
}

func (h *DailyFileHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.defaultHandler.Enabled(ctx, level)
}

// New builds the process logger. Levels: debug, info, warn, error.
func New(logDir, prefix, level string) (*slog.Logger, *DailyFileHandler, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler, err := NewDailyFileHandler(logDir, prefix, &slog.HandlerOptions{Level: lvl})
	if err != nil {
		return nil, nil, err
	}
	return slog.New(handler), handler, nil
}
