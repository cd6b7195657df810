// Package bytecode provides the compiled module produced by the compiler and
// the emitter used to build it.
//
// A [Module] is the output of compiling one compilation unit: code cells,
// global data, a string pool, fixups, and the import and export tables. It
// is handed to a linker that resolves imports against a running host and
// relocates every fixup.
//
// # Key Types
//
//   - [Module]: The compiled module and its append-only emitter
//   - [Fixup]: A code or data cell whose value depends on a relocated base
//   - [Chunk]: Code detached from a module for later re-insertion
//   - [Export]: An exported function or variable
//
// # Fixups
//
// Every instruction operand that holds an address records a fixup naming
// the base the value is relative to, so a loader can relocate code, global
// data, strings, imports and stack offsets independently:
//
//	m.WriteCmd(op.LitToReg, int32(op.MAR), offset)
//	m.FixupPrevious(bytecode.FixupGlobalData)
//
// # Chunks
//
// Constructs whose code must appear in a different order than the source
// (the iterate clause of a for loop, the case comparisons of a switch)
// emit their code normally and then detach it with [Module.Yank]. The chunk
// carries its fixups relative to its own start. [Module.WriteChunk] appends
// it again and rebinds the fixups.
//
// # Serialization
//
// [Marshal] and [Unmarshal] encode a module as canonical CBOR.
package bytecode
