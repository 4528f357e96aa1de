// Package gen invokes the external fuzzer generator and orchestrates
// incremental regeneration runs over a scanned source tree.
package gen

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/fplgen/fplgen/errors"
	"github.com/fplgen/fplgen/logger"
)

// Request describes a single generator invocation for one definition file.
type Request struct {
	// InputPath is the absolute path of the definition file.
	InputPath string

	// OutputDir is the absolute root the generator writes sources under.
	OutputDir string

	// Package, when non-nil, is passed to the generator as an explicit
	// namespace override. The empty string selects the root namespace.
	Package *string

	// ExtraArgs are appended verbatim before the input path.
	ExtraArgs []string
}

// Runner executes the generator. Implementations other than ExecRunner
// exist for tests.
type Runner interface {
	// Generate produces sources for one definition file.
	Generate(ctx context.Context, req Request) error

	// Version reports the generator's version string.
	Version(ctx context.Context) (string, error)
}

// ExecRunner runs the generator as a subprocess. The command line is
// shell-quoted, so a command may carry its own flags:
//
//	fuzzer --flavor classic
//
// Standard arguments (--outputdir, optional --package, the input path)
// are appended to it per invocation.
type ExecRunner struct {
	argv    []string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewExecRunner parses a shell-quoted command line into a runner.
// A timeout of zero leaves invocations unbounded.
func NewExecRunner(command string, timeout time.Duration) (*ExecRunner, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.NewConfigurationError("generator command is not a valid command line: %v", err)
	}
	if len(argv) == 0 {
		return nil, errors.NewConfigurationError("generator command cannot be empty")
	}
	if timeout < 0 {
		return nil, errors.NewConfigurationError("generator timeout must be >= 0, got %s", timeout)
	}

	return &ExecRunner{
		argv:    argv,
		timeout: timeout,
		log:     logger.ComponentLogger("gen.runner"),
	}, nil
}

// Generate invokes the generator for one definition file, forwarding its
// output to the log. A non-zero exit becomes a generation error carrying
// the exit code and the last stderr line.
func (r *ExecRunner) Generate(ctx context.Context, req Request) error {
	if !filepath.IsAbs(req.InputPath) {
		return errors.NewConfigurationError("input path is not absolute: %s", req.InputPath)
	}
	if !filepath.IsAbs(req.OutputDir) {
		return errors.NewConfigurationError("output directory is not absolute: %s", req.OutputDir)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := append([]string{}, r.argv[1:]...)
	args = append(args, "--outputdir="+req.OutputDir)
	if req.Package != nil {
		args = append(args, "--package="+*req.Package)
	}
	args = append(args, req.ExtraArgs...)
	args = append(args, req.InputPath)

	stdout := &generatorOutput{log: r.log, stream: "stdout"}
	stderr := &generatorOutput{log: r.log, stream: "stderr"}

	cmd := exec.CommandContext(ctx, r.argv[0], args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	stdout.flush()
	stderr.flush()
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return errors.WrapGenerate(err, fmt.Sprintf("generator timed out after %s", r.timeout))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		wrapped := errors.WrapGenerate(err, fmt.Sprintf("generator exited with code %d", exitErr.ExitCode()))
		if stderr.last != "" {
			wrapped = errors.WithDetail(wrapped, "stderr: "+stderr.last)
		}
		return wrapped
	}

	return errors.WrapGenerate(err, "starting generator")
}

var versionPattern = regexp.MustCompile(`v?\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?`)

// Version runs the generator with --version and extracts the first
// semver-shaped token from its output.
func (r *ExecRunner) Version(ctx context.Context) (string, error) {
	args := append([]string{}, r.argv[1:]...)
	args = append(args, "--version")

	out, err := exec.CommandContext(ctx, r.argv[0], args...).CombinedOutput()
	if err != nil {
		return "", errors.WrapGenerate(err, "querying generator version")
	}

	version := versionPattern.FindString(string(out))
	if version == "" {
		return "", errors.NewGenerateError("no version in generator output: %q", strings.TrimSpace(string(out)))
	}
	return version, nil
}

// generatorOutput forwards subprocess output to the log one line at a
// time, remembering the last non-empty line for error reporting.
type generatorOutput struct {
	log    *zap.SugaredLogger
	stream string
	buf    strings.Builder
	last   string
}

func (g *generatorOutput) Write(p []byte) (n int, err error) {
	g.buf.Write(p)
	for {
		line, rest, found := strings.Cut(g.buf.String(), "\n")
		if !found {
			break
		}
		g.buf.Reset()
		g.buf.WriteString(rest)
		g.emit(line)
	}
	return len(p), nil
}

// flush logs any trailing output the generator left without a newline.
func (g *generatorOutput) flush() {
	g.emit(g.buf.String())
	g.buf.Reset()
}

func (g *generatorOutput) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	g.last = line
	if g.stream == "stderr" {
		g.log.Warnw("Generator output", "stream", g.stream, "message", line)
	} else {
		g.log.Infow("Generator output", "stream", g.stream, "message", line)
	}
}
