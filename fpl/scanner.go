package fpl

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fplgen/fplgen/errors"
)

// DefaultIncludes selects definition files when no include patterns are
// configured.
var DefaultIncludes = []string{"**/*.fpl", "**/*.FPL"}

// defaultExcludes is always applied in addition to configured excludes, so
// VCS metadata and editor droppings never count as definition files.
var defaultExcludes = []string{
	"**/.git/**",
	"**/.svn/**",
	"**/.hg/**",
	"**/CVS/**",
	"**/.DS_Store",
	"**/*~",
}

// ScanConfig describes a scan. The zero value is not usable: SourceDir is
// required and must be absolute.
type ScanConfig struct {
	// SourceDir is the absolute directory to scan for definition files.
	SourceDir string

	// Includes are doublestar patterns selecting definition files,
	// relative to SourceDir. Empty means DefaultIncludes.
	Includes []string

	// Excludes are doublestar patterns removing files from the scan.
	// The defaultExcludes set is applied in addition.
	Excludes []string

	// OutputDir is the absolute directory holding generated artifacts,
	// used for staleness checking. Empty disables the check: every
	// matched program is reported stale.
	OutputDir string

	// StaleTolerance is the modification-time granularity: a program is
	// fresh while targetModTime+StaleTolerance >= sourceModTime. Must
	// be >= 0.
	StaleTolerance time.Duration

	// NamespaceOverride, when non-nil, replaces the namespace declared
	// in every definition file. An empty override selects the root
	// namespace.
	NamespaceOverride *string

	// FollowSymlinks controls whether enumeration descends through
	// symlinked directories. nil means true.
	FollowSymlinks *bool

	// Force skips the staleness decision: every matched program is
	// reported stale. Generation still writes into OutputDir.
	Force bool
}

// Scanner enumerates definition files under a source directory and reports
// the ones whose generated artifacts are stale.
//
// A Scanner is single-threaded: Scan blocks until done and must not be
// called concurrently on the same instance.
type Scanner struct {
	cfg      ScanConfig
	includes []string
	excludes []string
	included []*Program
	matched  int

	// TargetsFunc computes the generated files a program's source is
	// compared against. The default is the single canonical target
	// outputDir/OutputRelPath; generators that emit additional files per
	// program can widen the check here.
	TargetsFunc func(outputDir string, p *Program) []string
}

// NewScanner validates cfg and returns a scanner for it. Validation is pure:
// no filesystem access happens before Scan. Invalid configuration yields a
// configuration error.
func NewScanner(cfg ScanConfig) (*Scanner, error) {
	if !filepath.IsAbs(cfg.SourceDir) {
		return nil, errors.NewConfigurationError("source directory is not absolute: %s", cfg.SourceDir)
	}
	if cfg.OutputDir != "" && !filepath.IsAbs(cfg.OutputDir) {
		return nil, errors.NewConfigurationError("output directory is not absolute: %s", cfg.OutputDir)
	}
	if cfg.StaleTolerance < 0 {
		return nil, errors.NewConfigurationError("stale tolerance must be >= 0, got %s", cfg.StaleTolerance)
	}

	includes := cfg.Includes
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	normalized := make([]string, 0, len(includes))
	for _, pattern := range includes {
		pattern = filepath.ToSlash(pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.NewConfigurationError("invalid include pattern: %s", pattern)
		}
		normalized = append(normalized, pattern)
	}

	excludes := make([]string, 0, len(cfg.Excludes)+len(defaultExcludes))
	for _, pattern := range cfg.Excludes {
		pattern = filepath.ToSlash(pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.NewConfigurationError("invalid exclude pattern: %s", pattern)
		}
		excludes = append(excludes, pattern)
	}
	excludes = append(excludes, defaultExcludes...)

	return &Scanner{
		cfg:      cfg,
		includes: normalized,
		excludes: excludes,
	}, nil
}

// Scan enumerates definition files matching at least one include pattern and
// no exclude pattern, resolves each, and returns those whose generated
// artifacts are stale, in enumeration order.
//
// Each call discards the previous result. On error no partial result is
// retained: Included returns an empty set and the error is returned to the
// caller. A missing or unreadable source tree is a scan error, as is any
// failure to read a matched definition file.
func (s *Scanner) Scan() ([]*Program, error) {
	s.included = nil
	s.matched = 0

	info, err := os.Stat(s.cfg.SourceDir)
	if err != nil {
		return nil, errors.WrapScan(err, "source directory is not scannable")
	}
	if !info.IsDir() {
		return nil, errors.WrapScan(errors.Newf("not a directory: %s", s.cfg.SourceDir), "source directory is not scannable")
	}

	matched, err := s.enumerate()
	if err != nil {
		return nil, err
	}

	included := make([]*Program, 0, len(matched))
	for _, slashPath := range matched {
		relPath := filepath.FromSlash(slashPath)

		content, err := os.ReadFile(filepath.Join(s.cfg.SourceDir, relPath))
		if err != nil {
			return nil, errors.WrapScan(err, "reading definition file")
		}

		prog, err := Resolve(s.cfg.SourceDir, relPath, s.cfg.NamespaceOverride, string(content))
		if err != nil {
			return nil, err
		}

		stale, err := s.isStale(prog)
		if err != nil {
			return nil, err
		}
		if stale {
			included = append(included, prog)
		}
	}

	s.included = included
	s.matched = len(matched)
	return included, nil
}

// Included returns the programs reported stale by the most recent Scan.
// Empty until Scan has succeeded at least once.
func (s *Scanner) Included() []*Program {
	return s.included
}

// Matched returns how many definition files the most recent Scan matched,
// stale or not. Zero until Scan has succeeded at least once.
func (s *Scanner) Matched() int {
	return s.matched
}

// Config returns a copy of the scanner's configuration.
func (s *Scanner) Config() ScanConfig {
	return s.cfg
}

// enumerate walks the source tree once per include pattern and collects
// matching files in pattern order, lexically sorted within each pattern,
// deduplicated, excludes applied. Sorting pins the enumeration order so
// repeated scans of the same tree report programs in the same sequence.
func (s *Scanner) enumerate() ([]string, error) {
	fsys := os.DirFS(s.cfg.SourceDir)

	opts := []doublestar.GlobOption{
		doublestar.WithFilesOnly(),
		doublestar.WithFailOnIOErrors(),
	}
	if s.cfg.FollowSymlinks != nil && !*s.cfg.FollowSymlinks {
		opts = append(opts, doublestar.WithNoFollow())
	}

	seen := make(map[string]bool)
	var matched []string
	for _, pattern := range s.includes {
		var batch []string
		err := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
			if seen[path] || s.excluded(path) {
				return nil
			}
			seen[path] = true
			batch = append(batch, path)
			return nil
		}, opts...)
		if err != nil {
			return nil, errors.WrapScan(err, "enumerating definition files")
		}
		sort.Strings(batch)
		matched = append(matched, batch...)
	}
	return matched, nil
}

// excluded reports whether the slash-separated relative path matches any
// exclude pattern.
func (s *Scanner) excluded(slashPath string) bool {
	for _, pattern := range s.excludes {
		if ok, _ := doublestar.Match(pattern, slashPath); ok {
			return true
		}
	}
	return false
}

// isStale decides whether a program needs regeneration. With Force set or no
// output directory configured everything is stale. Otherwise the program is
// stale when any target file is missing, or when a target's modification time
// plus the tolerance is strictly before the source's.
func (s *Scanner) isStale(p *Program) (bool, error) {
	if s.cfg.Force || s.cfg.OutputDir == "" {
		return true, nil
	}

	srcInfo, err := os.Stat(p.AbsInputPath())
	if err != nil {
		return false, errors.WrapScan(err, "stat definition file")
	}
	sourceMod := srcInfo.ModTime()

	for _, target := range s.targets(p) {
		targetInfo, err := os.Stat(target)
		if err != nil {
			// Missing or unreadable target counts as stale
			return true, nil
		}
		if targetInfo.ModTime().Add(s.cfg.StaleTolerance).Before(sourceMod) {
			return true, nil
		}
	}
	return false, nil
}

// targets returns the generated files checked for staleness.
func (s *Scanner) targets(p *Program) []string {
	if s.TargetsFunc != nil {
		return s.TargetsFunc(s.cfg.OutputDir, p)
	}
	return []string{filepath.Join(s.cfg.OutputDir, p.OutputRelPath)}
}
