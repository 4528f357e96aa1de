package gen_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fplgen/fplgen/errors"
	"github.com/fplgen/fplgen/gen"
	fplgentest "github.com/fplgen/fplgen/internal/testing"
)

func TestNewExecRunner_Validation(t *testing.T) {
	tests := []struct {
		name    string
		command string
		timeout time.Duration
	}{
		{name: "empty command", command: "", timeout: 0},
		{name: "blank command", command: "   ", timeout: 0},
		{name: "unterminated quote", command: `fuzzer "half`, timeout: 0},
		{name: "negative timeout", command: "fuzzer", timeout: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.NewExecRunner(tt.command, tt.timeout)
			assert.True(t, errors.IsConfigurationError(err), "expected configuration error, got %v", err)
		})
	}
}

func TestExecRunner_ArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	stub := fplgentest.StubGenerator(t, dir, "fuzzer",
		`printf '%s\n' "$@" > `+argsFile)

	runner, err := gen.NewExecRunner(stub+" --flavor classic", 0)
	require.NoError(t, err)

	input := filepath.Join(dir, "OrgParser.fpl")
	outDir := filepath.Join(dir, "out")
	pkg := "com.acme.generated"

	err = runner.Generate(context.Background(), gen.Request{
		InputPath: input,
		OutputDir: outDir,
		Package:   &pkg,
		ExtraArgs: []string{"--trace"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)

	want := []string{
		"--flavor",
		"classic",
		"--outputdir=" + outDir,
		"--package=" + pkg,
		"--trace",
		input,
	}
	assert.Equal(t, want, strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestExecRunner_QuotedCommandPath(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	stub := fplgentest.StubGenerator(t, dir, "fuzz gen",
		`printf '%s\n' "$@" > `+argsFile)

	// The quoted path must survive as a single argv element
	runner, err := gen.NewExecRunner(`"`+stub+`" --flavor classic`, 0)
	require.NoError(t, err)

	err = runner.Generate(context.Background(), gen.Request{
		InputPath: filepath.Join(dir, "A.fpl"),
		OutputDir: filepath.Join(dir, "out"),
	})
	require.NoError(t, err, "a space inside quotes must not split the command")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "--flavor")
}

func TestExecRunner_NoPackageFlagWithoutOverride(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	stub := fplgentest.StubGenerator(t, dir, "fuzzer",
		`printf '%s\n' "$@" > `+argsFile)

	runner, err := gen.NewExecRunner(stub, 0)
	require.NoError(t, err)

	err = runner.Generate(context.Background(), gen.Request{
		InputPath: filepath.Join(dir, "A.fpl"),
		OutputDir: filepath.Join(dir, "out"),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "--package",
		"declared namespaces must stay in effect when no override is set")
}

func TestExecRunner_EmptyOverrideSelectsRootNamespace(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	stub := fplgentest.StubGenerator(t, dir, "fuzzer",
		`printf '%s\n' "$@" > `+argsFile)

	runner, err := gen.NewExecRunner(stub, 0)
	require.NoError(t, err)

	root := ""
	err = runner.Generate(context.Background(), gen.Request{
		InputPath: filepath.Join(dir, "A.fpl"),
		OutputDir: filepath.Join(dir, "out"),
		Package:   &root,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, strings.Split(strings.TrimSpace(string(data)), "\n"), "--package=")
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	stub := fplgentest.StubGenerator(t, dir, "fuzzer",
		`echo "bad grammar near line 4" >&2
exit 3`)

	runner, err := gen.NewExecRunner(stub, 0)
	require.NoError(t, err)

	err = runner.Generate(context.Background(), gen.Request{
		InputPath: filepath.Join(dir, "A.fpl"),
		OutputDir: filepath.Join(dir, "out"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsGenerateError(err))
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Contains(t, strings.Join(errors.GetAllDetails(err), "\n"), "bad grammar near line 4")
}

func TestExecRunner_Timeout(t *testing.T) {
	dir := t.TempDir()
	stub := fplgentest.StubGenerator(t, dir, "fuzzer", `sleep 5`)

	runner, err := gen.NewExecRunner(stub, 100*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	err = runner.Generate(context.Background(), gen.Request{
		InputPath: filepath.Join(dir, "A.fpl"),
		OutputDir: filepath.Join(dir, "out"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsGenerateError(err))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecRunner_RejectsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	stub := fplgentest.StubGenerator(t, dir, "fuzzer", `exit 0`)

	runner, err := gen.NewExecRunner(stub, 0)
	require.NoError(t, err)

	err = runner.Generate(context.Background(), gen.Request{
		InputPath: "relative/A.fpl",
		OutputDir: filepath.Join(dir, "out"),
	})
	assert.True(t, errors.IsConfigurationError(err))

	err = runner.Generate(context.Background(), gen.Request{
		InputPath: filepath.Join(dir, "A.fpl"),
		OutputDir: "relative/out",
	})
	assert.True(t, errors.IsConfigurationError(err))
}

func TestExecRunner_Version(t *testing.T) {
	dir := t.TempDir()
	stub := fplgentest.StubGenerator(t, dir, "fuzzer",
		`echo "fuzzer version 2.1.3-rc.1 (build 9f2c)"`)

	runner, err := gen.NewExecRunner(stub, 0)
	require.NoError(t, err)

	version, err := runner.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.1.3-rc.1", version)
}

func TestExecRunner_VersionUnparseable(t *testing.T) {
	dir := t.TempDir()
	stub := fplgentest.StubGenerator(t, dir, "fuzzer", `echo "homegrown build"`)

	runner, err := gen.NewExecRunner(stub, 0)
	require.NoError(t, err)

	_, err = runner.Version(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsGenerateError(err))
}
