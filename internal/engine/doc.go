// Package engine executes compiled programs frame by frame.
//
// The engine owns a flat float64 slab laid out by the compiler's slot
// metadata and walks the schedule strictly in slice order every tick. It
// never reorders steps, never consults the type system, and holds no
// compiler state: a CompiledProgram plus a frame clock is the whole
// runtime contract.
//
// Determinism model: given the same program and the same sequence of dt
// values, every tick produces a byte-identical RenderFrame. There is no
// wall-clock access anywhere in this package; the caller feeds time in.
package engine
