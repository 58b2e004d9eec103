// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/models"
)

const (
	filePrefix   = "calsync-"
	fileSuffix   = ".tar.gz"
	timeLayout   = "20060102T150405.000Z"
	sectionsFile = "sections.json"
	eventsFile   = "events.json"
	manifestFile = "manifest.json"
)

// ErrIncomplete is returned by Load for an archive without a manifest.
var ErrIncomplete = errors.New("snapshot has no manifest")

// Source is the read side of the store. *database.DB satisfies it.
type Source interface {
	ListSections(ctx context.Context) ([]models.Section, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// FileInfo describes one archive member.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"sha256"`
}

// Manifest is the last member of every archive.
type Manifest struct {
	CreatedAt time.Time  `json:"created_at"`
	Sections  int        `json:"sections"`
	Events    int        `json:"events"`
	Files     []FileInfo `json:"files"`
}

// Snapshot is an archive on disk.
type Snapshot struct {
	Path      string
	CreatedAt time.Time
	Size      int64
}

// Data is the decoded content of an archive.
type Data struct {
	Manifest Manifest
	Sections []models.Section
	Events   []models.Event
}

// Manager creates and prunes snapshots in one directory.
type Manager struct {
	dir    string
	keep   int
	source Source
	now    func() time.Time

	mu sync.Mutex
}

// NewManager creates dir if needed. keep below 1 keeps a single snapshot.
func NewManager(dir string, keep int, source Source) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory is required")
	}
	if keep < 1 {
		keep = 1
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Manager{dir: dir, keep: keep, source: source, now: time.Now}, nil
}

// Create writes a new snapshot. The archive only appears under its final
// name once it is complete.
func (m *Manager) Create(ctx context.Context) (snap Snapshot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sections, err := m.source.ListSections(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read sections: %w", err)
	}
	events, err := m.source.ListEvents(ctx, models.EventFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read events: %w", err)
	}

	created := m.now().UTC()
	final := filepath.Join(m.dir, filePrefix+created.Format(timeLayout)+fileSuffix)
	tmp, err := os.CreateTemp(m.dir, ".snapshot-*")
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)
	manifest := Manifest{CreatedAt: created, Sections: len(sections), Events: len(events)}

	for _, member := range []struct {
		name string
		v    interface{}
	}{
		{sectionsFile, sections},
		{eventsFile, events},
	} {
		info, err := writeJSON(tw, member.name, member.v, created)
		if err != nil {
			return Snapshot{}, err
		}
		manifest.Files = append(manifest.Files, info)
	}
	if _, err := writeJSON(tw, manifestFile, manifest, created); err != nil {
		return Snapshot{}, err
	}

	if err := tw.Close(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to finish compression: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return Snapshot{}, fmt.Errorf("failed to publish snapshot: %w", err)
	}

	st, err := os.Stat(final)
	if err != nil {
		return Snapshot{}, err
	}
	logging.Info().
		Str("path", final).
		Int("sections", len(sections)).
		Int("events", len(events)).
		Int64("bytes", st.Size()).
		Msg("Calendar snapshot written")
	return Snapshot{Path: final, CreatedAt: created, Size: st.Size()}, nil
}

func writeJSON(tw *tar.Writer, name string, v interface{}, modTime time.Time) (FileInfo, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	header := &tar.Header{
		Name:    name,
		Mode:    0o640,
		Size:    int64(len(raw)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return FileInfo{}, fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := tw.Write(raw); err != nil {
		return FileInfo{}, fmt.Errorf("failed to write %s: %w", name, err)
	}
	sum := sha256.Sum256(raw)
	return FileInfo{Name: name, Size: int64(len(raw)), Checksum: hex.EncodeToString(sum[:])}, nil
}

// List returns the snapshots in the directory, newest first.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}
	var out []Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		created, err := time.Parse(timeLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Path: filepath.Join(m.dir, name), CreatedAt: created, Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Prune deletes all but the newest keep snapshots and returns how many
// were removed.
func (m *Manager) Prune() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps, err := m.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, s := range snaps[min(m.keep, len(snaps)):] {
		if err := os.Remove(s.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logging.Info().Int("removed", removed).Int("kept", m.keep).Msg("Old snapshots pruned")
	}
	return removed, errors.Join(errs...)
}

// Run creates a snapshot and prunes old ones. It is the maintenance job.
func (m *Manager) Run(ctx context.Context) error {
	if _, err := m.Create(ctx); err != nil {
		return err
	}
	_, err := m.Prune()
	return err
}

// Load reads and verifies an archive.
func Load(path string) (*Data, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from List or the operator
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer gz.Close() //nolint:errcheck // read-only

	members := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		raw, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		members[header.Name] = raw
	}

	rawManifest, ok := members[manifestFile]
	if !ok {
		return nil, ErrIncomplete
	}
	data := &Data{}
	if err := json.Unmarshal(rawManifest, &data.Manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	for _, fi := range data.Manifest.Files {
		raw, ok := members[fi.Name]
		if !ok {
			return nil, fmt.Errorf("snapshot is missing %s", fi.Name)
		}
		sum := sha256.Sum256(raw)
		if hex.EncodeToString(sum[:]) != fi.Checksum {
			return nil, fmt.Errorf("checksum mismatch for %s", fi.Name)
		}
	}
	if err := json.Unmarshal(members[sectionsFile], &data.Sections); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", sectionsFile, err)
	}
	if err := json.Unmarshal(members[eventsFile], &data.Events); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", eventsFile, err)
	}
	return data, nil
}
