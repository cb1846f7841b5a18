package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/kinetlab/kinet/internal/ir"
)

// Snapshot is the golden-comparable view of a scenario result. Every
// field goes through canonical JSON, so byte equality is the assertion.
type Snapshot struct {
	Scenario    string `json:"scenario"`
	ParseError  string `json:"parse_error,omitempty"`
	Diagnostics []any  `json:"diagnostics,omitempty"`
	ProgramHash string `json:"program_hash,omitempty"`
	Program     any    `json:"program,omitempty"`
	Frames      []any  `json:"frames,omitempty"`
}

// BuildSnapshot reduces a result to its canonical form. The full program
// is included only when includeProgram is set; hash-only snapshots keep
// goldens small for scenarios that pin behavior, not layout.
func BuildSnapshot(s *Scenario, res *Result, includeProgram bool) (*Snapshot, error) {
	snap := &Snapshot{Scenario: s.Name}

	if res.ParseErr != nil {
		snap.ParseError = res.ParseErr.Error()
		return snap, nil
	}
	if len(res.Diagnostics) > 0 {
		for _, d := range res.Diagnostics {
			m, err := ir.CanonicalMap(d)
			if err != nil {
				return nil, fmt.Errorf("snapshot diagnostics: %w", err)
			}
			snap.Diagnostics = append(snap.Diagnostics, m)
		}
		return snap, nil
	}

	hash, err := res.Program.ProgramHash()
	if err != nil {
		return nil, fmt.Errorf("snapshot program: %w", err)
	}
	snap.ProgramHash = hash
	if includeProgram {
		m, err := ir.CanonicalMap(res.Program)
		if err != nil {
			return nil, fmt.Errorf("snapshot program: %w", err)
		}
		snap.Program = m
	}

	for _, f := range res.Frames {
		m, err := ir.CanonicalMap(f)
		if err != nil {
			return nil, fmt.Errorf("snapshot frame %d: %w", f.Frame, err)
		}
		snap.Frames = append(snap.Frames, m)
	}
	return snap, nil
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario, includeProgram bool) {
	t.Helper()

	res, err := Run(s)
	if err != nil {
		t.Fatalf("scenario %s: %v", s.Name, err)
	}
	snap, err := BuildSnapshot(s, res, includeProgram)
	if err != nil {
		t.Fatalf("scenario %s: %v", s.Name, err)
	}

	m, err := ir.CanonicalMap(snap)
	if err != nil {
		t.Fatalf("scenario %s: canonicalize snapshot: %v", s.Name, err)
	}
	data, err := ir.MarshalCanonical(m)
	if err != nil {
		t.Fatalf("scenario %s: marshal snapshot: %v", s.Name, err)
	}

	g := goldie.New(t)
	g.Assert(t, s.Name, data)
}
