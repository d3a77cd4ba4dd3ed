package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const defaultFilePath = "./messenger.log"

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the console and file sinks.
type Service struct {
	mu       sync.Mutex
	file     *os.File
	filePath string

	cur atomic.Pointer[zerolog.Logger]
}

// New applies cfg and returns the Service with a Logger bound to it. A file
// that cannot be opened is reported on stderr and logging falls back to
// the console.
func New(cfg Config) (*Service, Logger) {
	s := &Service{}
	if err := s.Apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "logx: %v\n", err)
	}
	return s, Logger{src: s}
}

func (s *Service) current() *zerolog.Logger {
	if zl := s.cur.Load(); zl != nil {
		return zl
	}
	nop := zerolog.Nop()
	return &nop
}

// Apply swaps level and sinks. The file stays open while its path is
// unchanged. With no usable sink the console is used.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var openErr error
	path := ""
	if cfg.File.Enabled {
		path = strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultFilePath
		}
	}
	if path != s.filePath {
		s.closeFileLocked()
		if path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				openErr = fmt.Errorf("open log file %q: %w", path, err)
			} else {
				s.file, s.filePath = f, path
			}
		}
	}

	var sinks []io.Writer
	if s.file != nil {
		sinks = append(sinks, zerolog.SyncWriter(s.file))
	}
	if cfg.Console || len(sinks) == 0 {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat})
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.cur.Store(&zl)
	return openErr
}

// Close releases the file sink.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFileLocked()
}

func (s *Service) closeFileLocked() error {
	f := s.file
	s.file, s.filePath = nil, ""
	if f == nil {
		return nil
	}
	return f.Close()
}
