package gen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fplgen/fplgen/errors"
	"github.com/fplgen/fplgen/fpl"
	"github.com/fplgen/fplgen/logger"
)

// PipelineConfig assembles the pieces of a regeneration run.
type PipelineConfig struct {
	// Scanner decides which definition files need regeneration. Its
	// configuration must carry an output directory.
	Scanner *fpl.Scanner

	// Runner executes the generator for each stale program.
	Runner Runner

	// Emitter receives progress. nil runs silently.
	Emitter ProgressEmitter

	// VersionConstraint is a semver range the generator must satisfy
	// before anything is generated. "" skips the check.
	VersionConstraint string

	// ProtectedRoots are absolute directories the output directory must
	// not point into. Handwritten sources live there.
	ProtectedRoots []string

	// ExtraArgs are appended to every generator invocation.
	ExtraArgs []string
}

// Pipeline runs scan-then-generate over a source tree: enumerate
// definition files, keep the stale ones, and invoke the generator once
// per program in enumeration order, stopping at the first failure.
type Pipeline struct {
	scanner    *fpl.Scanner
	runner     Runner
	emitter    ProgressEmitter
	constraint string
	protected  []string
	extraArgs  []string
	log        *zap.SugaredLogger
}

// NewPipeline validates the configuration and builds a pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Scanner == nil {
		return nil, errors.NewConfigurationError("pipeline requires a scanner")
	}
	if cfg.Runner == nil {
		return nil, errors.NewConfigurationError("pipeline requires a runner")
	}
	if cfg.Scanner.Config().OutputDir == "" {
		return nil, errors.NewConfigurationError("pipeline requires an output directory")
	}
	for _, root := range cfg.ProtectedRoots {
		if !filepath.IsAbs(root) {
			return nil, errors.NewConfigurationError("protected root is not absolute: %s", root)
		}
	}
	if cfg.VersionConstraint != "" {
		if _, err := semver.NewConstraint(cfg.VersionConstraint); err != nil {
			return nil, errors.NewConfigurationError("version constraint is not a valid semver range: %v", err)
		}
	}

	emitter := cfg.Emitter
	if emitter == nil {
		emitter = nopEmitter{}
	}

	return &Pipeline{
		scanner:    cfg.Scanner,
		runner:     cfg.Runner,
		emitter:    emitter,
		constraint: cfg.VersionConstraint,
		protected:  cfg.ProtectedRoots,
		extraArgs:  cfg.ExtraArgs,
		log:        logger.ComponentLogger("gen.pipeline"),
	}, nil
}

// Result summarizes one pipeline run.
type Result struct {
	Session    string `json:"session"`
	Matched    int    `json:"matched"`
	Stale      int    `json:"stale"`
	Generated  int    `json:"generated"`
	DurationMS int64  `json:"duration_ms"`
}

func (r *Result) summary() map[string]interface{} {
	return map[string]interface{}{
		"session":     r.Session,
		"matched":     r.Matched,
		"stale":       r.Stale,
		"generated":   r.Generated,
		"duration_ms": r.DurationMS,
	}
}

// Run executes one regeneration pass. A missing source directory is a
// clean no-op. The first generator failure aborts the run; files already
// generated stay on disk.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{Session: uuid.New().String()}
	log := logger.ChildLogger(p.log, logger.FieldSession, result.Session)

	sc := p.scanner.Config()

	if info, err := os.Stat(sc.SourceDir); err != nil || !info.IsDir() {
		log.Infow("Skipping non-existing source directory", logger.FieldSourceDir, sc.SourceDir)
		p.emitter.EmitInfo("Skipping non-existing source directory: " + sc.SourceDir)
		result.DurationMS = time.Since(start).Milliseconds()
		return result, nil
	}

	if err := p.guardOutputDir(sc.OutputDir); err != nil {
		p.emitter.EmitError("configure", err)
		return nil, err
	}

	p.emitter.EmitStage("scan", "Scanning "+sc.SourceDir)
	programs, err := p.scanner.Scan()
	if err != nil {
		p.emitter.EmitError("scan", err)
		return nil, err
	}
	result.Matched = p.scanner.Matched()
	result.Stale = len(programs)

	log.Infow("Scan finished",
		logger.FieldSourceDir, sc.SourceDir,
		logger.FieldCount, result.Matched,
		logger.FieldStale, result.Stale,
	)

	if len(programs) == 0 {
		log.Infow("Skipping - all parsers are up to date")
		p.emitter.EmitInfo("Skipping - all parsers are up to date")
		result.DurationMS = time.Since(start).Milliseconds()
		p.emitter.EmitComplete(result.summary())
		return result, nil
	}

	if err := p.checkGeneratorVersion(ctx); err != nil {
		p.emitter.EmitError("version", err)
		return nil, err
	}

	if err := os.MkdirAll(sc.OutputDir, 0o755); err != nil {
		err = errors.WrapGenerate(err, "creating output directory")
		p.emitter.EmitError("generate", err)
		return nil, err
	}

	p.emitter.EmitStage("generate", fmt.Sprintf("Generating %d program(s)", len(programs)))
	for _, program := range programs {
		select {
		case <-ctx.Done():
			return nil, errors.WrapGenerate(ctx.Err(), "generation interrupted")
		default:
		}

		absInput := program.AbsInputPath()
		log.Infof("Processing: %s", absInput)
		p.emitter.EmitProgram(program)

		req := Request{
			InputPath: absInput,
			OutputDir: sc.OutputDir,
			Package:   sc.NamespaceOverride,
			ExtraArgs: p.extraArgs,
		}
		if err := p.runner.Generate(ctx, req); err != nil {
			err = errors.WithDetailf(err, "definition file: %s", absInput)
			p.emitter.EmitError("generate", err)
			return nil, err
		}
		result.Generated++
	}

	result.DurationMS = time.Since(start).Milliseconds()
	log.Infof("Processed %d program(s)", result.Generated)
	log.Infow("Generation finished",
		logger.FieldCount, result.Generated,
		logger.FieldDurationMS, result.DurationMS,
	)
	p.emitter.EmitComplete(result.summary())
	return result, nil
}

// guardOutputDir refuses to generate into a protected source root, so a
// clean of the generated tree can never touch handwritten sources.
func (p *Pipeline) guardOutputDir(outputDir string) error {
	for _, root := range p.protected {
		if outputDir == root || strings.HasPrefix(outputDir, root+string(filepath.Separator)) {
			return errors.NewConfigurationError("output directory %s is inside protected source root %s", outputDir, root)
		}
	}
	return nil
}

// checkGeneratorVersion enforces the configured constraint against the
// version the generator reports.
func (p *Pipeline) checkGeneratorVersion(ctx context.Context) error {
	if p.constraint == "" {
		// No version constraint specified
		return nil
	}

	raw, err := p.runner.Version(ctx)
	if err != nil {
		return err
	}

	version, err := semver.NewVersion(raw)
	if err != nil {
		return errors.NewConfigurationError("invalid generator version %s: %v", raw, err)
	}

	constraint, err := semver.NewConstraint(p.constraint)
	if err != nil {
		return errors.NewConfigurationError("invalid version constraint %s: %v", p.constraint, err)
	}

	if !constraint.Check(version) {
		return errors.NewConfigurationError("generator version %s does not satisfy constraint %s", raw, p.constraint)
	}

	p.log.Debugw("Generator version accepted", logger.FieldGenerator, raw)
	return nil
}
