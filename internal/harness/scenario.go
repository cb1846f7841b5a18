// Package harness runs end-to-end scenarios: a patch in, a compiled
// program (or its diagnostics) and optionally a few engine frames out,
// snapshotted as canonical JSON and pinned by golden files. Scenarios are
// the conformance surface; when a compiler change moves a golden, the diff
// is the review artifact.
package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/compiler"
	"github.com/kinetlab/kinet/internal/engine"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
	"github.com/kinetlab/kinet/internal/patchfile"
)

// Scenario is one conformance case loaded from YAML.
type Scenario struct {
	// Name uniquely identifies the scenario; it is also the golden file
	// stem.
	Name string `yaml:"name"`

	// Description explains what the scenario pins.
	Description string `yaml:"description,omitempty"`

	// Patch is inline CUE source. Exactly one of Patch and PatchFile must
	// be set.
	Patch string `yaml:"patch,omitempty"`

	// PatchFile is a CUE file path relative to the scenario file.
	PatchFile string `yaml:"patch_file,omitempty"`

	// Frames ticks the engine this many times after a successful compile.
	Frames int `yaml:"frames,omitempty"`

	// Dt is the per-frame time step in seconds. Zero means 1/60.
	Dt float64 `yaml:"dt,omitempty"`

	dir string
}

// LoadScenario reads one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s has no name", path)
	}
	if (s.Patch == "") == (s.PatchFile == "") {
		return nil, fmt.Errorf("scenario %s must set exactly one of patch, patch_file", path)
	}
	s.dir = filepath.Dir(path)
	return &s, nil
}

// Result is everything a scenario produced. Exactly one of ParseErr,
// Diagnostics and Program is meaningful.
type Result struct {
	Patch       *patch.Patch
	ParseErr    error
	Diagnostics []compiler.Diagnostic
	Program     *ir.CompiledProgram
	Frames      []*ir.RenderFrame
}

// Run executes one scenario against the builtin block registry.
func Run(s *Scenario) (*Result, error) {
	res := &Result{}

	var p *patch.Patch
	var err error
	if s.PatchFile != "" {
		p, err = patchfile.LoadFile(filepath.Join(s.dir, s.PatchFile))
	} else {
		p, err = patchfile.Parse(s.Name+".cue", s.Patch)
	}
	if err != nil {
		res.ParseErr = err
		return res, nil
	}
	res.Patch = p

	compiled, diags := compiler.Compile(p, blocks.Builtin())
	if len(diags) > 0 {
		res.Diagnostics = diags
		return res, nil
	}
	res.Program = compiled.Program

	if s.Frames > 0 {
		eng, err := engine.New(compiled.Program)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		dt := s.Dt
		if dt == 0 {
			dt = 1.0 / 60
		}
		for i := 0; i < s.Frames; i++ {
			res.Frames = append(res.Frames, eng.Tick(dt))
		}
	}
	return res, nil
}
