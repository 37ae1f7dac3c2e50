// Package diagnose turns manifest text into positioned version
// diagnostics: it parses dependency entries, resolves their published
// versions and classifies each declared requirement against the
// newest-first version list.
package diagnose

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"crateslsp/internal/manifest"
	"crateslsp/internal/resolver"
	"crateslsp/internal/source"
)

// SourceTag marks every diagnostic this synthesizer emits.
const SourceTag = "crates-io"

// Diagnostic is one positioned finding for a dependency entry.
type Diagnostic struct {
	Range    source.Range
	Severity Severity
	Message  string
	Source   string
}

// Synthesizer runs diagnostic passes. It is stateless across passes
// apart from the shared version cache owned by the resolver.
type Synthesizer struct {
	resolver *resolver.Resolver
	logger   *zap.Logger
}

func New(res *resolver.Resolver, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{resolver: res, logger: logger}
}

// Collect runs one full diagnostic pass over manifest text. A
// structural parse failure aborts the pass; the caller leaves its
// previously published diagnostics in place. Entries whose span cannot
// be mapped are logged and skipped, never fatal.
func (s *Synthesizer) Collect(ctx context.Context, text string) ([]Diagnostic, error) {
	m, err := manifest.Parse([]byte(text))
	if err != nil {
		return nil, err
	}
	deps := m.Registry()
	if len(deps) == 0 {
		return []Diagnostic{}, nil
	}

	names := make([]string, 0, len(deps))
	for _, dep := range deps {
		names = append(names, dep.Name)
	}
	versions := s.resolver.Resolve(ctx, names)

	idx := source.NewTextIndex([]byte(text))
	diagnostics := make([]Diagnostic, 0, len(deps))
	for _, dep := range deps {
		newestFirst := newestFirst(versions[dep.Name])
		message, severity := describe(dep, newestFirst)
		rng, err := idx.RangeForSpan(dep.NameSpan)
		if err != nil {
			s.logger.Warn("dependency span outside document",
				zap.String("crate", dep.Name),
				zap.Error(err))
			continue
		}
		diagnostics = append(diagnostics, Diagnostic{
			Range:    rng,
			Severity: severity,
			Message:  message,
			Source:   SourceTag,
		})
	}
	return diagnostics, nil
}

// newestFirst reverses the registry-ordered list into newest-first
// without mutating the cached slice.
func newestFirst(versions []string) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[len(versions)-1-i] = v
	}
	return out
}

func describe(dep *manifest.Dependency, newestFirst []string) (string, Severity) {
	if len(newestFirst) == 0 {
		return fmt.Sprintf("Failed to fetch versions for %s", dep.Name), SevError
	}
	label, severity := Classify(dep.Requirement(), newestFirst)
	message := fmt.Sprintf("%s\n\n%s (%s)\n%s",
		label, dep.Name, dep.Requirement(), strings.Join(newestFirst, "\n"))
	return message, severity
}

// Classify matches a requirement against a non-empty newest-first
// version list. Matching is a plain prefix scan over version strings,
// not semver range evaluation.
func Classify(req string, newestFirst []string) (string, Severity) {
	if req == "*" {
		return "Matches any Version", SevInfo
	}
	for i, version := range newestFirst {
		if strings.HasPrefix(version, req) {
			if i == 0 {
				return "Latest Version", SevHint
			}
			return "Outdated Version", SevWarning
		}
	}
	return "Unknown Version", SevError
}
