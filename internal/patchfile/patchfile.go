// Package patchfile loads authored patches from CUE files.
//
// A patch file is a single CUE document with this shape:
//
//	patch: {
//		name: "orbit"
//		blocks: {
//			time: kind: "Time"
//			osc:  {kind: "Osc", params: freq: 0.5}
//		}
//		edges: [
//			{from: "osc.phase", to: "polar.angle"},
//		]
//	}
//
// Block ids are the struct field labels; edge endpoints are "block.port"
// strings split on the last dot. CUE gives authors defaults, comments and
// interpolation for free; the loader only ever sees the evaluated value.
package patchfile

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/kinetlab/kinet/internal/patch"
)

// ParseError is a patch file failure with a source position when CUE has
// one. The code is stable for the CLI and tests.
type ParseError struct {
	Code    string
	Message string
	Pos     token.Pos
}

// CodeParse is the code every patch file failure carries.
const CodeParse = "E_PATCH_PARSE"

func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func parseErr(pos token.Pos, format string, args ...any) *ParseError {
	return &ParseError{Code: CodeParse, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// LoadFile reads and parses one patch file.
func LoadFile(path string) (*patch.Patch, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, parseErr(token.NoPos, "reading %s: %v", path, err)
	}
	return Parse(path, string(src))
}

// Parse evaluates CUE source and decodes the patch value. The returned
// patch is sorted and validated; a nil error means the compiler can take
// it as-is.
func Parse(filename, source string) (*patch.Patch, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, parseErr(v.Pos(), "evaluating CUE: %v", err)
	}

	pv := v.LookupPath(cue.ParsePath("patch"))
	if !pv.Exists() {
		return nil, parseErr(v.Pos(), "file has no top-level patch field")
	}
	return decodePatch(pv)
}

func decodePatch(v cue.Value) (*patch.Patch, error) {
	p := &patch.Patch{}

	if nv := v.LookupPath(cue.ParsePath("name")); nv.Exists() {
		name, err := nv.String()
		if err != nil {
			return nil, parseErr(nv.Pos(), "patch name: %v", err)
		}
		p.Name = name
	}

	bv := v.LookupPath(cue.ParsePath("blocks"))
	if !bv.Exists() {
		return nil, parseErr(v.Pos(), "patch has no blocks field")
	}
	iter, err := bv.Fields()
	if err != nil {
		return nil, parseErr(bv.Pos(), "blocks must be a struct of id: block entries: %v", err)
	}
	for iter.Next() {
		id := iter.Selector().Unquoted()
		if strings.Contains(id, "$") {
			// '$' prefixes derived blocks the compiler inserts itself.
			return nil, parseErr(iter.Value().Pos(), "block id %q: '$' is reserved for compiler-derived blocks", id)
		}
		b, err := decodeBlock(id, iter.Value())
		if err != nil {
			return nil, err
		}
		p.Blocks = append(p.Blocks, b)
	}

	if ev := v.LookupPath(cue.ParsePath("edges")); ev.Exists() {
		list, err := ev.List()
		if err != nil {
			return nil, parseErr(ev.Pos(), "edges must be a list: %v", err)
		}
		for list.Next() {
			e, err := decodeEdge(list.Value())
			if err != nil {
				return nil, err
			}
			p.Edges = append(p.Edges, e)
		}
	}

	p.Sort()
	if err := p.Validate(); err != nil {
		return nil, parseErr(v.Pos(), "%v", err)
	}
	return p, nil
}

func decodeBlock(id string, v cue.Value) (patch.Block, error) {
	b := patch.Block{ID: id}

	kv := v.LookupPath(cue.ParsePath("kind"))
	if !kv.Exists() {
		return b, parseErr(v.Pos(), "block %q has no kind", id)
	}
	kind, err := kv.String()
	if err != nil {
		return b, parseErr(kv.Pos(), "block %q kind: %v", id, err)
	}
	b.Kind = kind

	if pv := v.LookupPath(cue.ParsePath("params")); pv.Exists() {
		iter, err := pv.Fields()
		if err != nil {
			return b, parseErr(pv.Pos(), "block %q params must be a struct: %v", id, err)
		}
		b.Params = map[string]float64{}
		for iter.Next() {
			f, err := iter.Value().Float64()
			if err != nil {
				return b, parseErr(iter.Value().Pos(), "block %q param %s must be numeric: %v", id, iter.Selector().Unquoted(), err)
			}
			b.Params[iter.Selector().Unquoted()] = f
		}
	}
	return b, nil
}

func decodeEdge(v cue.Value) (patch.Edge, error) {
	from, err := decodePortRef(v, "from")
	if err != nil {
		return patch.Edge{}, err
	}
	to, err := decodePortRef(v, "to")
	if err != nil {
		return patch.Edge{}, err
	}
	return patch.Edge{From: from, To: to}, nil
}

func decodePortRef(v cue.Value, field string) (patch.PortRef, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return patch.PortRef{}, parseErr(v.Pos(), "edge has no %s endpoint", field)
	}
	s, err := fv.String()
	if err != nil {
		return patch.PortRef{}, parseErr(fv.Pos(), "edge %s: %v", field, err)
	}
	dot := strings.LastIndex(s, ".")
	if dot <= 0 || dot == len(s)-1 {
		return patch.PortRef{}, parseErr(fv.Pos(), "edge %s %q is not block.port", field, s)
	}
	return patch.PortRef{Block: s[:dot], Port: s[dot+1:]}, nil
}
