package diagnose

import (
	"context"
	"fmt"
	"strings"

	"crateslsp/internal/manifest"
	"crateslsp/internal/source"
)

// Hover is markdown content for a dependency name under the cursor.
type Hover struct {
	Contents string
	Range    source.Range
}

// HoverAt builds hover content for the dependency whose name token
// covers the given position. Returns nil when the cursor is not on a
// resolvable dependency.
func (s *Synthesizer) HoverAt(ctx context.Context, text string, pos source.Position) (*Hover, error) {
	m, err := manifest.Parse([]byte(text))
	if err != nil {
		return nil, err
	}
	idx := source.NewTextIndex([]byte(text))
	off, err := idx.OffsetForPosition(pos)
	if err != nil {
		return nil, err
	}
	dep, ok := m.DependencyAt(off)
	if !ok || !dep.HasRegistryIdentity() {
		return nil, nil
	}

	resolved := s.resolver.Resolve(ctx, []string{dep.Name})
	newest := newestFirst(resolved[dep.Name])
	rng, err := idx.RangeForSpan(dep.NameSpan)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s`\n\n", dep.Name, dep.Requirement())
	if len(newest) == 0 {
		b.WriteString("No published versions found.\n")
		return &Hover{Contents: b.String(), Range: rng}, nil
	}
	if latest, ok := Latest(newest); ok {
		fmt.Fprintf(&b, "Latest: `%s`\n\n", latest)
	}
	if stable, ok := LatestStable(newest); ok && stable != newest[0] {
		fmt.Fprintf(&b, "Latest stable: `%s`\n\n", stable)
	}
	fmt.Fprintf(&b, "%d published versions\n", len(newest))
	return &Hover{Contents: b.String(), Range: rng}, nil
}
