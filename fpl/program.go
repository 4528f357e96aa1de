// Package fpl resolves fuzzer program definition files (.fpl) to the
// namespace, artifact name, and output location of their generated sources,
// and scans source trees for definition files whose generated artifacts are
// stale.
//
// The package is purely computational plus filesystem metadata reads. It
// never logs and never writes; orchestration and generator invocation live
// in the gen package.
package fpl

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fplgen/fplgen/errors"
)

// GeneratedFileSuffix is the file suffix the external generator emits for
// each program.
const GeneratedFileSuffix = ".java"

// Definition files declare their namespace and program name with these two
// directives. First match anywhere in the content wins; the patterns are not
// line-anchored.
var (
	namespacePattern = regexp.MustCompile(`package\s+([^\s.;]+(\.[^\s.;]+)*)\s*;`)
	programPattern   = regexp.MustCompile(`program\s+([^\s.{]+(\.[^\s.{]+)*)\s*\{`)
)

// Program holds the resolved output metadata for a single definition file.
// It is derived once from the file's location and content and never mutated
// afterwards.
type Program struct {
	// SourceDir is the absolute base directory the definition file was
	// resolved against. Not necessarily the file's parent directory.
	SourceDir string

	// InputPath is the definition file's path relative to SourceDir,
	// e.g. "fpl/MyFuzzer.fpl".
	InputPath string

	// Namespace is the dotted namespace declared in the definition file
	// (e.g. "org.apache"), or the override it was resolved with. Empty
	// means the root namespace.
	Namespace string

	// NamespaceDir is Namespace with dots mapped to the platform path
	// separator (e.g. "org/apache"). Empty when Namespace is empty.
	NamespaceDir string

	// Name is the simple artifact name, e.g. "MyFuzzer".
	Name string

	// OutputRelPath is the generated file's path relative to an output
	// root, e.g. "org/apache/MyFuzzer.java".
	OutputRelPath string
}

// Resolve derives a Program from a definition file's location and content.
//
// sourceDir must be absolute. inputPath may be relative (kept as-is) or
// absolute, in which case it must lie under sourceDir and is made relative.
// nsOverride, when non-nil, replaces the namespace declared in the content;
// an empty override selects the root namespace.
//
// Resolve performs no I/O and is idempotent for identical inputs.
func Resolve(sourceDir, inputPath string, nsOverride *string, content string) (*Program, error) {
	if !filepath.IsAbs(sourceDir) {
		return nil, errors.NewConfigurationError("source directory is not absolute: %s", sourceDir)
	}

	relInput := inputPath
	if filepath.IsAbs(inputPath) {
		prefix := sourceDir + string(filepath.Separator)
		if !strings.HasPrefix(inputPath, prefix) {
			return nil, errors.NewConfigurationError("input file is not relative to source directory: %s", inputPath)
		}
		relInput = inputPath[len(prefix):]
	}

	var namespace string
	if nsOverride != nil {
		namespace = *nsOverride
	} else {
		namespace = findNamespace(content)
	}
	namespaceDir := strings.ReplaceAll(namespace, ".", string(filepath.Separator))

	name := findProgramName(content)
	if name == "" {
		base := filepath.Base(relInput)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	outputRelPath := name + GeneratedFileSuffix
	if namespaceDir != "" {
		outputRelPath = filepath.Join(namespaceDir, name+GeneratedFileSuffix)
	}

	return &Program{
		SourceDir:     sourceDir,
		InputPath:     relInput,
		Namespace:     namespace,
		NamespaceDir:  namespaceDir,
		Name:          name,
		OutputRelPath: outputRelPath,
	}, nil
}

// findNamespace extracts the declared namespace from definition file
// content, or "" when no package directive is present.
func findNamespace(content string) string {
	if m := namespacePattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// findProgramName extracts the declared program name from definition file
// content, or "" when no program directive is present.
func findProgramName(content string) string {
	if m := programPattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// AbsInputPath returns the absolute path to the definition file.
func (p *Program) AbsInputPath() string {
	return filepath.Join(p.SourceDir, p.InputPath)
}

// ResolveNamespaceRef resolves a namespace reference against this program's
// namespace. A leading "*" is replaced by the program namespace, then a
// single leading "." is stripped. The period after the asterisk is
// significant: with namespace "org.apache", "*.node" resolves to
// "org.apache.node" while "*node" resolves to "org.apachenode". References
// without the prefix are returned unchanged.
func (p *Program) ResolveNamespaceRef(ref string) string {
	resolved := ref
	if strings.HasPrefix(resolved, "*") {
		resolved = p.Namespace + resolved[1:]
		resolved = strings.TrimPrefix(resolved, ".")
	}
	return resolved
}

// String returns a debugging representation of the resolved program.
func (p *Program) String() string {
	return fmt.Sprintf("Program{sourceDir=%s, inputPath=%s, namespace=%s, name=%s, outputRelPath=%s}",
		p.SourceDir, p.InputPath, p.Namespace, p.Name, p.OutputRelPath)
}
