package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/nxadm/tail"

	"webtoondl/config"
)

// RotatingFile is an io.Writer that appends to a log file and rotates it
// once it reaches maxSize bytes, keeping maxBackups numbered copies
// (webtoondl.log.1 is the newest backup).
type RotatingFile struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

// OpenRotatingFile opens (or creates) path in append mode. A file that is
// already over the limit is rotated before writing.
func OpenRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rf := &RotatingFile{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}

	if info, err := os.Stat(path); err == nil {
		rf.size = info.Size()
		if maxSize > 0 && rf.size >= maxSize {
			if err := rf.rotate(); err != nil {
				return nil, fmt.Errorf("failed to rotate logs: %w", err)
			}
		}
	}

	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RotatingFile) open() error {
	file, err := os.OpenFile(rf.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	rf.file = file
	rf.size = info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file over the limit.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}

	if rf.maxSize > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxSize {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
		if err := rf.open(); err != nil {
			return 0, err
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// Close closes the underlying file.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

// rotate shifts path.N to path.N+1, drops the oldest and moves the live
// file to path.1. The caller reopens the live file.
func (rf *RotatingFile) rotate() error {
	if rf.file != nil {
		rf.file.Close()
		rf.file = nil
	}

	if rf.maxBackups <= 0 {
		rf.size = 0
		return os.Truncate(rf.path, 0)
	}

	os.Remove(fmt.Sprintf("%s.%d", rf.path, rf.maxBackups))

	for i := rf.maxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", rf.path, i), fmt.Sprintf("%s.%d", rf.path, i+1))
	}

	if err := os.Rename(rf.path, rf.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}

	rf.size = 0
	return nil
}

// Setup routes the standard logger to stderr and the rotating log file.
// The returned func restores stderr-only logging and closes the file.
func Setup(cfg config.Logging) (func(), error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if cfg.Dir == "" || cfg.File == "" {
		log.SetOutput(os.Stderr)
		return func() {}, nil
	}

	rf, err := OpenRotatingFile(cfg.LogPath(), int64(cfg.MaxSizeMB)*1024*1024, cfg.MaxBackups)
	if err != nil {
		return nil, err
	}

	log.SetOutput(io.MultiWriter(os.Stderr, rf))
	log.Printf("[Logging] Writing logs to %s (max %d MB, %d backups)", cfg.LogPath(), cfg.MaxSizeMB, cfg.MaxBackups)

	return func() {
		log.SetOutput(os.Stderr)
		rf.Close()
	}, nil
}

// Tail copies the log file at path to w line by line. When follow is set
// it keeps streaming new lines (across rotations) until ctx is cancelled.
func Tail(ctx context.Context, path string, follow bool, w io.Writer) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			if _, err := fmt.Fprintln(w, line.Text); err != nil {
				return err
			}
		}
	}
}
