// Package sink persists JSON lines to per-channel files with daily rotation
// and bounded retention of rotated files.
package sink

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// backupSuffixLayout names rotated files: events.jsonl.2026-08-27 covers
// the UTC day 2026-08-27.
const backupSuffixLayout = "2006-01-02"

// RotateHook is called after a successful rotation with the channel name
// and the path of the file that was just rotated out.
type RotateHook func(channel, path string)

// Sink appends lines to {dir}/{name}.jsonl, rotating at UTC day boundaries
// and keeping at most backupCount rotated files. Safe for concurrent use;
// the check-rotate-write sequence holds the sink's mutex so rotation happens
// exactly once per boundary crossing. Obtain sinks from a Registry.
type Sink struct {
	name        string
	dir         string
	backupCount int
	now         func() time.Time
	onRotate    RotateHook

	// mu serializes check-rotate-write per channel; sinks for different
	// channels hold independent locks and never block each other.
	mu           sync.Mutex
	file         *os.File
	nextBoundary time.Time
}

func (s *Sink) path() string {
	return filepath.Join(s.dir, s.name+".jsonl")
}

// Append durably writes line plus a newline to the channel's current file,
// rotating first if a day boundary has been crossed. Writes are unbuffered
// so a crash loses at most the line in flight.
func (s *Sink) Append(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if err := s.ensureOpen(now); err != nil {
		return &WriteError{Channel: s.name, Op: "open", Err: err}
	}

	var rotateErr error
	if !now.Before(s.nextBoundary) {
		rotateErr = s.rotate(now)
		if s.file == nil {
			// Rotation could not reopen the live file; the next append
			// retries via ensureOpen.
			return &WriteError{Channel: s.name, Op: "rotate", Err: rotateErr}
		}
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := s.file.Write(buf); err != nil {
		return &WriteError{Channel: s.name, Op: "write", Err: err}
	}

	if rotateErr != nil {
		// The line was still written (to the carried-over file); report the
		// rotation failure so callers can monitor logging health.
		return &WriteError{Channel: s.name, Op: "rotate", Err: rotateErr}
	}
	return nil
}

// ensureOpen opens the live file lazily. The rotation boundary is derived
// from the existing file's mtime so a restarted process still rolls a file
// left over from a previous day.
func (s *Sink) ensureOpen(now time.Time) error {
	if s.file != nil {
		return nil
	}

	base := now
	if info, err := os.Stat(s.path()); err == nil {
		base = info.ModTime()
	}

	f, err := os.OpenFile(s.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	s.nextBoundary = nextDayBoundary(base)
	return nil
}

func nextDayBoundary(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// rotate closes the live file, renames it with the suffix of the day it
// covers, reopens a fresh live file and prunes old backups. On failure the
// live file is reopened so the channel is never left stuck; the boundary
// still advances to avoid retrying the same failed rotation on every append.
func (s *Sink) rotate(now time.Time) error {
	if err := s.file.Close(); err != nil {
		log.Printf("channel %s: close before rotation: %v", s.name, err)
	}
	s.file = nil

	coveredDay := s.nextBoundary.Add(-24 * time.Hour)
	dst := s.path() + "." + coveredDay.Format(backupSuffixLayout)

	// A leftover backup with the same suffix gives way, as the previous
	// rotation for that day was incomplete.
	if _, err := os.Stat(dst); err == nil {
		os.Remove(dst)
	}

	renameErr := os.Rename(s.path(), dst)

	f, err := os.OpenFile(s.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.nextBoundary = nextDayBoundary(now)
		if renameErr != nil {
			return renameErr
		}
		return err
	}
	s.file = f
	s.nextBoundary = nextDayBoundary(now)

	if renameErr != nil {
		return renameErr
	}

	s.pruneBackups()

	if s.onRotate != nil {
		go s.onRotate(s.name, dst)
	}
	return nil
}

// pruneBackups deletes the oldest rotated files once more than backupCount
// remain. The date suffix sorts lexicographically in chronological order.
func (s *Sink) pruneBackups() {
	matches, err := filepath.Glob(filepath.Join(s.dir, s.name+".jsonl.*"))
	if err != nil {
		return
	}
	sort.Strings(matches)
	for len(matches) > s.backupCount {
		if err := os.Remove(matches[0]); err != nil {
			log.Printf("channel %s: prune backup %s: %v", s.name, matches[0], err)
		}
		matches = matches[1:]
	}
}

// Close flushes and closes the live file. The sink may be appended to again
// afterwards; the file reopens lazily.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return &WriteError{Channel: s.name, Op: "close", Err: err}
	}
	return nil
}
