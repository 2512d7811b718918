// Package checksum implements the append-only registry mapping source
// URLs to their (size, checksum) pairs.
//
// The registry is partitioned into one plain-text file per dataset
// name, stored under one or more configured directories. Files are
// line-oriented ("<url> <size> <checksum>", sorted by URL) so they
// diff cleanly and can live under version control. Writes are
// merge-then-replace: repeated runs with unchanged content produce
// byte-identical files, and a rewrite can never corrupt individual
// lines.
//
// The registry does not lock its backing files; callers must not run
// concurrent Record calls for the same dataset.
package checksum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Suffix is the file extension of checksum registry files.
const Suffix = ".txt"

var (
	// ErrNotFound is returned when no checksums file exists for a
	// dataset name.
	ErrNotFound = errors.New("no checksums file")

	// ErrRegistrationDisabled is returned when a Record call would
	// change the on-disk content while registration mode is off.
	ErrRegistrationDisabled = errors.New("checksum registration disabled")
)

// Entry is the recorded size and checksum of one source URL.
type Entry struct {
	Size     int64
	Checksum string
}

// ConflictError reports a URL registered with two distinct
// (size, checksum) tuples, which makes its provenance ambiguous.
type ConflictError struct {
	URL      string
	Existing Entry
	New      Entry
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("url %s is registered with 2+ distinct size/checksum tuples: (%d, %s) vs (%d, %s)",
		e.URL, e.Existing.Size, e.Existing.Checksum, e.New.Size, e.New.Checksum)
}

// Registry resolves dataset names to checksum files and maintains the
// merged global URL map.
//
// Directory scans and parsed files are memoized; Refresh drops the
// caches so tests and long-lived processes can observe external
// changes.
type Registry struct {
	mu       sync.Mutex
	dirs     []string
	register bool

	paths map[string]string           // dataset name -> file path
	files map[string]map[string]Entry // file path -> parsed entries
	all   map[string]Entry            // merged across all datasets
}

// NewRegistry creates a registry over the given checksum directories.
func NewRegistry(dirs ...string) *Registry {
	return &Registry{dirs: dirs}
}

// SetRegister toggles registration mode. Record only rewrites files
// while it is enabled; production runs leave it off so recorded
// checksums cannot change silently.
func (r *Registry) SetRegister(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register = enabled
}

// Refresh invalidates the memoized directory scan and file contents.
func (r *Registry) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = nil
	r.files = nil
	r.all = nil
}

// Lookup resolves a dataset name to its checksum file path. The file
// stem must match the dataset name exactly.
func (r *Registry) Lookup(datasetName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(datasetName)
}

func (r *Registry) lookupLocked(datasetName string) (string, error) {
	paths, err := r.scanLocked()
	if err != nil {
		return "", err
	}
	path, ok := paths[datasetName]
	if !ok {
		return "", fmt.Errorf("%w for dataset %q: create one in one of: %s",
			ErrNotFound, datasetName, strings.Join(r.dirs, ", "))
	}
	return path, nil
}

// scanLocked builds (or returns the memoized) dataset -> path map.
func (r *Registry) scanLocked() (map[string]string, error) {
	if r.paths != nil {
		return r.paths, nil
	}
	paths := make(map[string]string)
	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, ent := range entries {
			if ent.IsDir() || !strings.HasSuffix(ent.Name(), Suffix) {
				continue
			}
			name := strings.TrimSuffix(ent.Name(), Suffix)
			paths[name] = filepath.Join(dir, ent.Name())
		}
	}
	r.paths = paths
	return paths, nil
}

// LoadAll reads every checksum file across all known datasets and
// merges them into one global map. Two datasets registering different
// tuples for the same URL is a fatal ConflictError.
func (r *Registry) LoadAll(ctx context.Context) (map[string]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.all != nil {
		return r.all, nil
	}

	paths, err := r.scanLocked()
	if err != nil {
		return nil, err
	}

	sorted := make([]string, 0, len(paths))
	for _, p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	// Parse uncached files concurrently, then merge deterministically
	// in sorted path order.
	parsed := make([]map[string]Entry, len(sorted))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range sorted {
		if entries, ok := r.cachedFile(p); ok {
			parsed[i] = entries
			continue
		}
		i, p := i, p
		g.Go(func() error {
			entries, err := parseFile(p)
			if err != nil {
				return err
			}
			parsed[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make(map[string]Entry)
	for i, entries := range parsed {
		for url, entry := range entries {
			if existing, ok := all[url]; ok && existing != entry {
				return nil, &ConflictError{URL: url, Existing: existing, New: entry}
			}
			all[url] = entry
		}
		r.cacheFile(sorted[i], entries)
	}
	r.all = all
	return all, nil
}

func (r *Registry) cachedFile(path string) (map[string]Entry, bool) {
	entries, ok := r.files[path]
	return entries, ok
}

func (r *Registry) cacheFile(path string, entries map[string]Entry) {
	if r.files == nil {
		r.files = make(map[string]map[string]Entry)
	}
	r.files[path] = entries
}

// loadFile parses one checksum file, memoized per path. Callers must
// hold the registry lock.
func (r *Registry) loadFile(path string) (map[string]Entry, error) {
	if entries, ok := r.cachedFile(path); ok {
		return entries, nil
	}
	entries, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	r.cacheFile(path, entries)
	return entries, nil
}

// parseFile parses one checksum file.
func parseFile(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]Entry)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		url, entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries[url] = entry
	}
	return entries, nil
}

// parseLine splits "<url> <size> <checksum>". URLs may contain
// spaces; size and checksum never do, so the line splits from the
// right.
func parseLine(line string) (string, Entry, error) {
	last := strings.LastIndexByte(line, ' ')
	if last < 0 {
		return "", Entry{}, fmt.Errorf("malformed checksum line %q", line)
	}
	checksum := line[last+1:]
	rest := line[:last]

	mid := strings.LastIndexByte(rest, ' ')
	if mid < 0 {
		return "", Entry{}, fmt.Errorf("malformed checksum line %q", line)
	}
	size, err := strconv.ParseInt(rest[mid+1:], 10, 64)
	if err != nil {
		return "", Entry{}, fmt.Errorf("malformed checksum line %q: %w", line, err)
	}
	return rest[:mid], Entry{Size: size, Checksum: checksum}, nil
}

// Record merges new entries into a dataset's checksum file.
//
// When the union equals the existing content the call is a no-op, so
// it is safe on every run. Content changes require registration mode;
// otherwise the call fails without touching the file. In registration
// mode the in-memory global cache is updated first, then the file is
// rewritten whole, sorted by URL.
func (r *Registry) Record(datasetName string, entries map[string]Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.lookupLocked(datasetName)
	if err != nil {
		return err
	}
	existing, err := r.loadFile(path)
	if err != nil {
		return err
	}

	merged := make(map[string]Entry, len(existing)+len(entries))
	for url, entry := range existing {
		merged[url] = entry
	}
	changed := false
	for url, entry := range entries {
		if prev, ok := merged[url]; !ok || prev != entry {
			changed = true
		}
		merged[url] = entry
	}
	if !changed {
		return nil
	}
	if !r.register {
		return fmt.Errorf("%w: call SetRegister(true) before recording new checksums for dataset %q",
			ErrRegistrationDisabled, datasetName)
	}

	// Update the global cache first so later comparisons in this
	// process see the new entries even if they were recorded for
	// another dataset sharing resources.
	if r.all != nil {
		for url, entry := range entries {
			r.all[url] = entry
		}
	}

	urls := make([]string, 0, len(merged))
	for url := range merged {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	var sb strings.Builder
	for _, url := range urls {
		entry := merged[url]
		fmt.Fprintf(&sb, "%s %d %s\n", url, entry.Size, entry.Checksum)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	r.files[path] = merged
	return nil
}
