package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultSkipDirs are directory names excluded from ingestion.
var defaultSkipDirs = []string{
	".git",
	".hg",
	".svn",
	".idea",
	".vscode",
	".next",
	".terraform",
	".venv",
	"venv",
	"node_modules",
	"bower_components",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
}

// defaultSkipExtensions are file extensions excluded from ingestion.
// These are binary or generated formats with no searchable text.
var defaultSkipExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".bmp", ".svg", ".webp",
	".pdf", ".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar",
	".exe", ".dll", ".so", ".dylib", ".a", ".o", ".wasm",
	".jar", ".class", ".pyc", ".pyo",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	".mp3", ".mp4", ".avi", ".mov", ".wav", ".flac",
	".db", ".sqlite", ".sqlite3", ".bin", ".dat",
	".min.js", ".min.css", ".map",
}

// IngestFilter decides which repository files are eligible for ingestion.
// The zero value is not useful; construct via DefaultIngestFilter or
// LoadIngestFilter.
type IngestFilter struct {
	skipDirs       map[string]struct{}
	skipExtensions []string
	includeOnly    []string
	maxFileBytes   int64
}

// ingestFilterFile is the YAML shape of a filter override file.
type ingestFilterFile struct {
	// SkipDirs replaces the default directory exclusion list when set.
	SkipDirs []string `yaml:"skip_dirs"`

	// ExtraSkipDirs appends to the directory exclusion list.
	ExtraSkipDirs []string `yaml:"extra_skip_dirs"`

	// SkipExtensions replaces the default extension exclusion list when set.
	SkipExtensions []string `yaml:"skip_extensions"`

	// IncludeExtensions restricts ingestion to the listed extensions.
	// When empty, everything not excluded is eligible.
	IncludeExtensions []string `yaml:"include_extensions"`

	// MaxFileBytes overrides the per-file size cap.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// DefaultIngestFilter returns a filter with the built-in exclusion lists
// and the given per-file size cap.
func DefaultIngestFilter(maxFileBytes int64) IngestFilter {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	dirs := make(map[string]struct{}, len(defaultSkipDirs))
	for _, d := range defaultSkipDirs {
		dirs[d] = struct{}{}
	}
	exts := make([]string, len(defaultSkipExtensions))
	copy(exts, defaultSkipExtensions)
	return IngestFilter{
		skipDirs:       dirs,
		skipExtensions: exts,
		maxFileBytes:   maxFileBytes,
	}
}

// LoadIngestFilter loads a YAML filter override file and merges it over the
// defaults. An empty path returns the defaults unchanged.
func LoadIngestFilter(path string, maxFileBytes int64) (IngestFilter, error) {
	f := DefaultIngestFilter(maxFileBytes)
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return IngestFilter{}, fmt.Errorf("read filter file: %w", err)
	}

	var file ingestFilterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return IngestFilter{}, fmt.Errorf("parse filter file %s: %w", path, err)
	}

	if len(file.SkipDirs) > 0 {
		f.skipDirs = make(map[string]struct{}, len(file.SkipDirs))
		for _, d := range file.SkipDirs {
			f.skipDirs[d] = struct{}{}
		}
	}
	for _, d := range file.ExtraSkipDirs {
		f.skipDirs[d] = struct{}{}
	}
	if len(file.SkipExtensions) > 0 {
		f.skipExtensions = normalizeExtensions(file.SkipExtensions)
	}
	if len(file.IncludeExtensions) > 0 {
		f.includeOnly = normalizeExtensions(file.IncludeExtensions)
	}
	if file.MaxFileBytes > 0 {
		f.maxFileBytes = file.MaxFileBytes
	}
	return f, nil
}

// MaxFileBytes returns the per-file size cap.
func (f IngestFilter) MaxFileBytes() int64 { return f.maxFileBytes }

// SkipPath returns true if the given repository-relative path should be
// excluded from ingestion based on its directory segments or extension.
func (f IngestFilter) SkipPath(p string) bool {
	p = strings.TrimPrefix(path.Clean(p), "/")
	segments := strings.Split(p, "/")
	for _, seg := range segments[:max(0, len(segments)-1)] {
		if _, ok := f.skipDirs[seg]; ok {
			return true
		}
	}
	name := strings.ToLower(segments[len(segments)-1])
	for _, ext := range f.skipExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	if len(f.includeOnly) > 0 {
		for _, ext := range f.includeOnly {
			if strings.HasSuffix(name, ext) {
				return false
			}
		}
		return true
	}
	return false
}

// SkipSize returns true if a file of the given size exceeds the cap.
func (f IngestFilter) SkipSize(size int64) bool {
	return size > f.maxFileBytes
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
