// Package manifest extracts dependency declarations and their source
// spans from Cargo.toml text.
package manifest

import (
	"fmt"

	"github.com/pelletier/go-toml/v2/unstable"

	"crateslsp/internal/source"
)

// Table identifies which dependency table an entry was declared in.
type Table uint8

const (
	TableRegular Table = iota
	TableBuild
	TableDev
)

func (t Table) String() string {
	switch t {
	case TableRegular:
		return "dependencies"
	case TableBuild:
		return "build-dependencies"
	case TableDev:
		return "dev-dependencies"
	}
	return "unknown"
}

// Dependency is one declared dependency. NameSpan covers the key token
// as written; ReqSpan covers the version string including quotes and is
// empty when no version requirement was declared.
type Dependency struct {
	Name      string
	NameSpan  source.Span
	Req       string
	ReqSpan   source.Span
	Table     Table
	Path      bool
	Workspace bool
}

// HasRegistryIdentity reports whether the entry can be resolved against
// a registry. Path and workspace dependencies have no registry
// presence and are excluded from resolution and diagnostics.
func (d *Dependency) HasRegistryIdentity() bool {
	return !d.Path && !d.Workspace
}

// Requirement returns the declared version constraint, defaulting to
// "*" when the entry declares none.
func (d *Dependency) Requirement() string {
	if d.Req == "" {
		return "*"
	}
	return d.Req
}

// Manifest holds every dependency entry of a parse, in declaration
// order.
type Manifest struct {
	Dependencies []*Dependency
}

// Registry returns the entries that have a registry identity.
func (m *Manifest) Registry() []*Dependency {
	out := make([]*Dependency, 0, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		if dep.HasRegistryIdentity() {
			out = append(out, dep)
		}
	}
	return out
}

// DependencyAt returns the entry whose name token covers the byte
// offset, if any.
func (m *Manifest) DependencyAt(off uint32) (*Dependency, bool) {
	for _, dep := range m.Dependencies {
		if dep.NameSpan.Contains(off) {
			return dep, true
		}
	}
	return nil, false
}

type tableKey struct {
	table Table
	name  string
}

// tableContext tracks which [section] the parser is currently inside.
type tableContext struct {
	active bool
	table  Table
	// set when inside a [dependencies.<name>] subtable
	depName string
	depSpan source.Span
}

// Parse extracts the regular, build and dev dependency tables from
// manifest text. Structural TOML errors fail the whole parse; the
// caller keeps its previous diagnostics in that case.
func Parse(data []byte) (*Manifest, error) {
	parser := &unstable.Parser{}
	parser.Reset(data)

	m := &Manifest{}
	index := make(map[tableKey]*Dependency)
	var ctx tableContext

	for parser.NextExpression() {
		expr := parser.Expression()
		switch expr.Kind {
		case unstable.Table:
			ctx = classifyTable(parser, expr)
		case unstable.ArrayTable:
			ctx = tableContext{}
		case unstable.KeyValue:
			if !ctx.active {
				continue
			}
			applyKeyValue(parser, expr, ctx, m, index)
		}
	}
	if err := parser.Error(); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

type keyPart struct {
	text string
	span source.Span
}

func keyParts(parser *unstable.Parser, node *unstable.Node) []keyPart {
	var parts []keyPart
	it := node.Key()
	for it.Next() {
		key := it.Node()
		parts = append(parts, keyPart{
			text: string(key.Data),
			span: nodeSpan(parser, key),
		})
	}
	return parts
}

func tableFor(name string) (Table, bool) {
	switch name {
	case "dependencies":
		return TableRegular, true
	case "build-dependencies":
		return TableBuild, true
	case "dev-dependencies":
		return TableDev, true
	}
	return 0, false
}

func classifyTable(parser *unstable.Parser, node *unstable.Node) tableContext {
	parts := keyParts(parser, node)
	if len(parts) == 0 || len(parts) > 2 {
		return tableContext{}
	}
	table, ok := tableFor(parts[0].text)
	if !ok {
		return tableContext{}
	}
	ctx := tableContext{active: true, table: table}
	if len(parts) == 2 {
		ctx.depName = parts[1].text
		ctx.depSpan = parts[1].span
	}
	return ctx
}

func applyKeyValue(parser *unstable.Parser, expr *unstable.Node, ctx tableContext, m *Manifest, index map[tableKey]*Dependency) {
	parts := keyParts(parser, expr)
	if len(parts) == 0 {
		return
	}
	value := expr.Value()

	if ctx.depName != "" {
		// [dependencies.foo] subtable: keys are dependency fields.
		if len(parts) != 1 {
			return
		}
		dep := ensureDep(m, index, ctx.table, ctx.depName, ctx.depSpan)
		applyField(parser, dep, parts[0].text, value)
		return
	}

	switch len(parts) {
	case 1:
		// name = "1.0" or name = { version = "1.0", ... }
		dep := ensureDep(m, index, ctx.table, parts[0].text, parts[0].span)
		switch value.Kind {
		case unstable.String:
			dep.Req = string(value.Data)
			dep.ReqSpan = nodeSpan(parser, value)
		case unstable.InlineTable:
			it := value.Children()
			for it.Next() {
				child := it.Node()
				if child.Kind != unstable.KeyValue {
					continue
				}
				fields := keyParts(parser, child)
				if len(fields) != 1 {
					continue
				}
				applyField(parser, dep, fields[0].text, child.Value())
			}
		}
	case 2:
		// dotted form: serde.version = "1.0"
		dep := ensureDep(m, index, ctx.table, parts[0].text, parts[0].span)
		applyField(parser, dep, parts[1].text, value)
	}
}

func applyField(parser *unstable.Parser, dep *Dependency, field string, value *unstable.Node) {
	switch field {
	case "version":
		if value.Kind == unstable.String {
			dep.Req = string(value.Data)
			dep.ReqSpan = nodeSpan(parser, value)
		}
	case "path":
		dep.Path = true
	case "workspace":
		if value.Kind == unstable.Bool && string(value.Data) == "true" {
			dep.Workspace = true
		}
	}
}

func ensureDep(m *Manifest, index map[tableKey]*Dependency, table Table, name string, span source.Span) *Dependency {
	key := tableKey{table: table, name: name}
	if dep, ok := index[key]; ok {
		return dep
	}
	dep := &Dependency{
		Name:     name,
		NameSpan: span,
		Table:    table,
	}
	index[key] = dep
	m.Dependencies = append(m.Dependencies, dep)
	return dep
}

// nodeSpan maps a parsed node back onto the input bytes. Key and string
// nodes carry their raw range; zero-copy nodes without one are located
// through the parser's subslice mapping.
func nodeSpan(parser *unstable.Parser, node *unstable.Node) source.Span {
	raw := node.Raw
	if raw.Length == 0 && len(node.Data) > 0 {
		raw = parser.Range(node.Data)
	}
	return source.Span{Start: raw.Offset, End: raw.Offset + raw.Length}
}
