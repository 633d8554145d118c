// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Package storage persists trained model artifacts.
//
// Artifacts are gob-encoded, checksummed with SHA-256 and gzip-compressed,
// then written as a single gob record holding metadata and the compressed
// payload. JSON sidecars (model metadata meant for humans and tooling) are
// written with goccy/go-json.
//
// # Replacement Contract
//
// Every write replaces the canonical file through a backup:
//
//  1. an existing canonical file is renamed to <name>.backup
//  2. the new content is written to the canonical path
//  3. on success the backup is deleted; on failure the partial file is
//     removed and the backup is renamed back
//
// A crash between steps leaves either the new file or the backup on disk.
// Load restores a backup that has no canonical file next to it, so a reader
// never sees a half-written artifact as valid: a truncated file fails its
// checksum or decode and is reported as ErrCorrupt.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// BackupSuffix is appended to a canonical file name while it is replaced.
const BackupSuffix = ".backup"

var (
	// ErrNotFound is returned when neither the artifact nor its backup exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrCorrupt is returned when an artifact cannot be decoded or fails
	// checksum verification.
	ErrCorrupt = errors.New("artifact corrupt")
)

// Metadata describes a stored artifact.
type Metadata struct {
	// Name identifies the model, e.g. "ensemble".
	Name string `json:"name"`

	// Version is the model version string.
	Version string `json:"version"`

	// TrainedAt is when the model was trained.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is set by Save.
	SavedAt time.Time `json:"saved_at"`

	// Checksum is the hex SHA-256 of the uncompressed gob payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// storedFile is the on-disk record.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Option configures a Store.
type Option func(*Store)

// WithWriterHook wraps every file writer the store opens. Tests use it to
// inject write failures part way through a save.
func WithWriterHook(hook func(io.Writer) io.Writer) Option {
	return func(s *Store) {
		s.hook = hook
	}
}

// Store reads and writes artifacts under one directory.
type Store struct {
	baseDir string
	hook    func(io.Writer) io.Writer

	// mu serialises writes, reads and backup recovery, so a reader never
	// sees the window where the canonical file is renamed to its backup.
	mu sync.Mutex
}

// NewStore creates the directory if needed and returns a store rooted at it.
func NewStore(baseDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create model directory: %w", err)
	}
	s := &Store{baseDir: baseDir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// Path returns the canonical path of file.
func (s *Store) Path(file string) string {
	return filepath.Join(s.baseDir, file)
}

// Exists reports whether the canonical file exists.
func (s *Store) Exists(file string) bool {
	_, err := os.Stat(s.Path(file))
	return err == nil
}

// Save encodes data and atomically replaces file with it. Encoding happens
// entirely in memory first, so an unencodable value never touches disk.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, file string, data any, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(data); err != nil {
		return fmt.Errorf("encode %s: %w", file, err)
	}
	sum := sha256.Sum256(raw.Bytes())
	meta.Checksum = hex.EncodeToString(sum[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress %s: %w", file, err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()

	record := storedFile{Metadata: meta, CompressedData: compressed.Bytes()}
	return s.replace(file, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(record)
	})
}

// Load decodes file into target and returns its metadata.
func (s *Store) Load(ctx context.Context, file string, target any) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.recoverBackup(file); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path(file)) //nolint:gosec // file names are fixed by the models package
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var record storedFile
	if err := gob.NewDecoder(f).Decode(&record); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, file, err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(record.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %s: %v", ErrCorrupt, file, err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %s: %v", ErrCorrupt, file, err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != record.Metadata.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch: expected %s, got %s", ErrCorrupt, record.Metadata.Checksum, got)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, file, err)
	}
	return &record.Metadata, nil
}

// SaveJSON atomically replaces file with the indented JSON encoding of v.
func (s *Store) SaveJSON(ctx context.Context, file string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", file, err)
	}
	return s.replace(file, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// LoadJSON decodes the JSON file into v.
func (s *Store) LoadJSON(ctx context.Context, file string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.recoverBackup(file); err != nil {
		return err
	}
	data, err := os.ReadFile(s.Path(file))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return fmt.Errorf("read %s: %w", file, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, file, err)
	}
	return nil
}

// Remove deletes file and any backup of it. A missing file is not an error.
func (s *Store) Remove(file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.Path(file), s.Path(file) + BackupSuffix} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// replace runs the backup/write/restore sequence for file.
func (s *Store) replace(file string, write func(io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(file)
	backup := path + BackupSuffix

	hadPrevious := false
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("back up %s: %w", file, err)
		}
		hadPrevious = true
	}

	if err := s.writeFile(path, write); err != nil {
		_ = os.Remove(path) //nolint:errcheck // partial file may not exist
		if hadPrevious {
			if rerr := os.Rename(backup, path); rerr != nil {
				return fmt.Errorf("write %s: %w (restore backup: %v)", file, err, rerr)
			}
		}
		return fmt.Errorf("write %s: %w", file, err)
	}

	if hadPrevious {
		_ = os.Remove(backup) //nolint:errcheck // a stale backup is ignored once the canonical file exists
	}
	return nil
}

func (s *Store) writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path) //nolint:gosec // path is built from the store directory and a fixed file name
	if err != nil {
		return err
	}

	var w io.Writer = f
	if s.hook != nil {
		w = s.hook(f)
	}
	if err := write(w); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close() //nolint:errcheck // sync error takes precedence
		return err
	}
	return f.Close()
}

// recoverBackup renames an orphaned backup back to the canonical path.
// The caller holds s.mu.
func (s *Store) recoverBackup(file string) error {
	path := s.Path(file)
	backup := path + BackupSuffix
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if _, err := os.Stat(backup); err != nil {
		return nil
	}
	if err := os.Rename(backup, path); err != nil {
		return fmt.Errorf("restore backup of %s: %w", file, err)
	}
	return nil
}
