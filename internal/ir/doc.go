// Package ir defines the canonical type model and the compiled program
// intermediate representation for kinet patches.
//
// The type side (PayloadType, Extent, Unit, CanonicalType, InstanceRef) is
// pure data with total predicates: it is what the compiler's solvers resolve
// every port to, and what block lowering receives. The program side
// (SlotMeta, expression tables, ScheduleIR, CompiledProgram) is the closed
// artifact handed to the runtime: dense integer ids only, no pointers, no
// type-system concepts left by the time a frame renders.
//
// Everything here is designed for byte-identical determinism: canonical JSON
// marshalling (key-sorted, NFC-normalized, no HTML escaping) backs both
// golden tests and content-addressed program hashing.
package ir
