package fpl_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fplgen/fplgen/errors"
	"github.com/fplgen/fplgen/fpl"
	fplgentest "github.com/fplgen/fplgen/internal/testing"
)

var fixtureTime = time.Date(2025, 5, 10, 12, 0, 0, 0, time.Local)

func TestScanner_AllStaleWithoutOutputDir(t *testing.T) {
	srcDir := t.TempDir()
	fplgentest.WriteFile(t, srcDir, "a.fpl", "package org.a;\nprogram A {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "nested/b.fpl", "program B {}", fixtureTime)

	scanner, err := fpl.NewScanner(fpl.ScanConfig{SourceDir: srcDir})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 2, "Without an output dir every matched file is stale")

	assert.Equal(t, "A", programs[0].Name)
	assert.Equal(t, "B", programs[1].Name)
	assert.Equal(t, programs, scanner.Included(), "Included reflects the last scan")
}

func TestScanner_EnumerationOrder(t *testing.T) {
	srcDir := t.TempDir()
	fplgentest.WriteFile(t, srcDir, "Z.FPL", "program Zed {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "a.fpl", "program Aye {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "b/c.fpl", "program Cee {}", fixtureTime)

	scanner, err := fpl.NewScanner(fpl.ScanConfig{SourceDir: srcDir})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 3)

	// Lowercase pattern first, lexical order within each pattern
	assert.Equal(t, "a.fpl", programs[0].InputPath)
	assert.Equal(t, filepath.Join("b", "c.fpl"), programs[1].InputPath)
	assert.Equal(t, "Z.FPL", programs[2].InputPath)
}

func TestScanner_FreshTargetsOmitted(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	fplgentest.WriteFile(t, srcDir, "fresh.fpl", "package org.x;\nprogram Fresh {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "missing.fpl", "package org.x;\nprogram Missing {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "older.fpl", "package org.x;\nprogram Older {}", fixtureTime)

	// Fresh target is newer than its source, stale target is older,
	// Missing has no target at all
	fplgentest.Touch(t, outDir, filepath.Join("org", "x", "Fresh.java"), fixtureTime.Add(time.Minute))
	fplgentest.Touch(t, outDir, filepath.Join("org", "x", "Older.java"), fixtureTime.Add(-time.Minute))

	scanner, err := fpl.NewScanner(fpl.ScanConfig{
		SourceDir: srcDir,
		OutputDir: outDir,
	})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 2, "Fresh program should be omitted")

	names := []string{programs[0].Name, programs[1].Name}
	assert.Contains(t, names, "Missing")
	assert.Contains(t, names, "Older")
	assert.NotContains(t, names, "Fresh")
}

func TestScanner_StaleToleranceBoundary(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	fplgentest.WriteFile(t, srcDir, "p.fpl", "program P {}", fixtureTime.Add(10*time.Second))
	fplgentest.Touch(t, outDir, "P.java", fixtureTime)

	// Target lags the source by exactly 10s. Staleness requires
	// targetMod+tolerance to be strictly before sourceMod.
	scanner, err := fpl.NewScanner(fpl.ScanConfig{
		SourceDir:      srcDir,
		OutputDir:      outDir,
		StaleTolerance: 10 * time.Second,
	})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	assert.Empty(t, programs, "Equal adjusted timestamps are fresh, not stale")

	scanner, err = fpl.NewScanner(fpl.ScanConfig{
		SourceDir:      srcDir,
		OutputDir:      outDir,
		StaleTolerance: 9 * time.Second,
	})
	require.NoError(t, err)

	programs, err = scanner.Scan()
	require.NoError(t, err)
	assert.Len(t, programs, 1, "Below the tolerance the program is stale")
}

func TestScanner_RescanDiscardsPreviousResults(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	fplgentest.WriteFile(t, srcDir, "p.fpl", "program P {}", fixtureTime)

	scanner, err := fpl.NewScanner(fpl.ScanConfig{
		SourceDir: srcDir,
		OutputDir: outDir,
	})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 1, "Target missing, so the program is stale")

	// Simulate generation: target now newer than the source
	fplgentest.Touch(t, outDir, "P.java", fixtureTime.Add(time.Minute))

	programs, err = scanner.Scan()
	require.NoError(t, err)
	assert.Empty(t, programs, "Rescan reflects the new state only")
	assert.Empty(t, scanner.Included(), "Prior results are discarded, not accumulated")
}

func TestScanner_NamespaceOverrideAppliesToAllFiles(t *testing.T) {
	srcDir := t.TempDir()
	fplgentest.WriteFile(t, srcDir, "a.fpl", "package org.a;\nprogram A {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "b.fpl", "program B {}", fixtureTime)

	override := "com.acme"
	scanner, err := fpl.NewScanner(fpl.ScanConfig{
		SourceDir:         srcDir,
		NamespaceOverride: &override,
	})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 2)

	for _, p := range programs {
		assert.Equal(t, "com.acme", p.Namespace, "Override applies to %s", p.InputPath)
		assert.Equal(t, filepath.Join("com", "acme", p.Name+".java"), p.OutputRelPath)
	}
}

func TestScanner_IncludeExcludePatterns(t *testing.T) {
	srcDir := t.TempDir()
	fplgentest.WriteFile(t, srcDir, "keep.fpl", "program Keep {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "legacy/old.fpl", "program Old {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "notes.txt", "not a definition file", fixtureTime)
	fplgentest.WriteFile(t, srcDir, ".git/objects/stray.fpl", "program Stray {}", fixtureTime)

	scanner, err := fpl.NewScanner(fpl.ScanConfig{
		SourceDir: srcDir,
		Excludes:  []string{"legacy/**"},
	})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 1, "Excluded subtree, non-matching files, and VCS metadata are skipped")
	assert.Equal(t, "Keep", programs[0].Name)
}

func TestScanner_CustomIncludes(t *testing.T) {
	srcDir := t.TempDir()
	fplgentest.WriteFile(t, srcDir, "a.fuzzy", "program A {}", fixtureTime)
	fplgentest.WriteFile(t, srcDir, "b.fpl", "program B {}", fixtureTime)

	scanner, err := fpl.NewScanner(fpl.ScanConfig{
		SourceDir: srcDir,
		Includes:  []string{"**/*.fuzzy"},
	})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, "A", programs[0].Name)
}

func TestScanner_MultiTargetHook(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	fplgentest.WriteFile(t, srcDir, "p.fpl", "program P {}", fixtureTime)
	fplgentest.Touch(t, outDir, "P.java", fixtureTime.Add(time.Minute))

	scanner, err := fpl.NewScanner(fpl.ScanConfig{
		SourceDir: srcDir,
		OutputDir: outDir,
	})
	require.NoError(t, err)

	// Widen the staleness check to a second per-program artifact that
	// does not exist yet
	scanner.TargetsFunc = func(outputDir string, p *fpl.Program) []string {
		return []string{
			filepath.Join(outputDir, p.OutputRelPath),
			filepath.Join(outputDir, p.Name+"Constants.java"),
		}
	}

	programs, err := scanner.Scan()
	require.NoError(t, err)
	assert.Len(t, programs, 1, "Any missing target makes the program stale")

	fplgentest.Touch(t, outDir, "PConstants.java", fixtureTime.Add(time.Minute))

	programs, err = scanner.Scan()
	require.NoError(t, err)
	assert.Empty(t, programs, "All targets fresh means up to date")
}

func TestScanner_MissingSourceDir(t *testing.T) {
	scanner, err := fpl.NewScanner(fpl.ScanConfig{
		SourceDir: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	require.NoError(t, err, "Construction does no I/O, so a missing dir is not rejected here")

	_, err = scanner.Scan()
	require.Error(t, err)
	assert.True(t, errors.IsScanError(err), "Missing source tree is a scan error")
	assert.Empty(t, scanner.Included(), "Failed scans retain no partial results")
}

func TestScanner_UnreadableDefinitionFile(t *testing.T) {
	srcDir := t.TempDir()
	fplgentest.Symlink(t, filepath.Join(srcDir, "nowhere"), filepath.Join(srcDir, "broken.fpl"))

	scanner, err := fpl.NewScanner(fpl.ScanConfig{SourceDir: srcDir})
	require.NoError(t, err)

	_, err = scanner.Scan()
	require.Error(t, err)
	assert.True(t, errors.IsScanError(err), "A definition file that cannot be read aborts the scan")
}

func TestNewScanner_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  fpl.ScanConfig
	}{
		{
			name: "relative source dir",
			cfg:  fpl.ScanConfig{SourceDir: "relative/path"},
		},
		{
			name: "relative output dir",
			cfg:  fpl.ScanConfig{SourceDir: "/abs/src", OutputDir: "relative/out"},
		},
		{
			name: "negative tolerance",
			cfg:  fpl.ScanConfig{SourceDir: "/abs/src", StaleTolerance: -time.Second},
		},
		{
			name: "bad include pattern",
			cfg:  fpl.ScanConfig{SourceDir: "/abs/src", Includes: []string{"["}},
		},
		{
			name: "bad exclude pattern",
			cfg:  fpl.ScanConfig{SourceDir: "/abs/src", Excludes: []string{"["}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fpl.NewScanner(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsConfigurationError(err), "Invalid configuration is rejected before any I/O")
		})
	}
}

func TestScanner_NoFollowSymlinks(t *testing.T) {
	realDir := t.TempDir()
	fplgentest.WriteFile(t, realDir, "linked.fpl", "program Linked {}", fixtureTime)

	srcDir := t.TempDir()
	fplgentest.WriteFile(t, srcDir, "direct.fpl", "program Direct {}", fixtureTime)
	fplgentest.Symlink(t, realDir, filepath.Join(srcDir, "sub"))

	follow := true
	scanner, err := fpl.NewScanner(fpl.ScanConfig{SourceDir: srcDir, FollowSymlinks: &follow})
	require.NoError(t, err)

	programs, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 2, "Symlinked directories are followed by default")

	noFollow := false
	scanner, err = fpl.NewScanner(fpl.ScanConfig{SourceDir: srcDir, FollowSymlinks: &noFollow})
	require.NoError(t, err)

	programs, err = scanner.Scan()
	require.NoError(t, err)
	require.Len(t, programs, 1, "With follow disabled only the direct file is found")
	assert.Equal(t, "Direct", programs[0].Name)
}
