package diagnose

import (
	"context"
	"fmt"
	"strings"

	"crateslsp/internal/manifest"
	"crateslsp/internal/source"
)

// UpdateAction proposes replacing a declared requirement with the
// latest published version. The edit is returned to the client; the
// server never touches files.
type UpdateAction struct {
	Title   string
	Range   source.Range
	NewText string
}

// UpdateActions returns "update to latest" edits for dependencies whose
// name token intersects the requested range and whose requirement does
// not already match the newest version. Entries without a version
// token in the text cannot be edited and are skipped.
func (s *Synthesizer) UpdateActions(ctx context.Context, text string, rng source.Range) ([]UpdateAction, error) {
	m, err := manifest.Parse([]byte(text))
	if err != nil {
		return nil, err
	}
	idx := source.NewTextIndex([]byte(text))
	start, err := idx.OffsetForPosition(rng.Start)
	if err != nil {
		return nil, err
	}
	end, err := idx.OffsetForPosition(rng.End)
	if err != nil {
		return nil, err
	}

	var actions []UpdateAction
	for _, dep := range m.Registry() {
		if dep.ReqSpan.Empty() {
			continue
		}
		if dep.NameSpan.End <= start || dep.NameSpan.Start > end {
			continue
		}
		resolved := s.resolver.Resolve(ctx, []string{dep.Name})
		newest := newestFirst(resolved[dep.Name])
		target, ok := LatestStable(newest)
		if !ok {
			target, ok = Latest(newest)
		}
		if !ok {
			continue
		}
		if strings.HasPrefix(target, dep.Requirement()) {
			continue
		}
		editRange, err := idx.RangeForSpan(dep.ReqSpan)
		if err != nil {
			continue
		}
		newText := target
		if dep.ReqSpan.Start < uint32(len(text)) && text[dep.ReqSpan.Start] == '"' {
			newText = `"` + target + `"`
		}
		actions = append(actions, UpdateAction{
			Title:   fmt.Sprintf("Update %s to %s", dep.Name, target),
			Range:   editRange,
			NewText: newText,
		})
	}
	return actions, nil
}
