package compiler

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/symbols"
)

// Chunk tags of a call site. Positive tags are chunk IDs.
const (
	inCodebase = 0
	patched    = -1
)

type callSite struct {
	// loc is the code cell to patch. For sites inside a chunk it is
	// relative to the start of the chunk.
	loc   int
	chunk int
}

type callpoint struct {
	target int // negative while unknown
	sites  []callSite
}

// callpoints tracks the code cells that refer to a function whose address
// is not known yet. Code can be yanked into chunks and written back any
// number of times; the sites move along with it.
type callpoints struct {
	kind    string
	mod     *bytecode.Module
	log     zerolog.Logger
	entries map[symbols.ID]*callpoint
}

func newCallpoints(kind string, mod *bytecode.Module, log zerolog.Logger) *callpoints {
	return &callpoints{kind: kind, mod: mod, log: log, entries: map[symbols.ID]*callpoint{}}
}

func (cp *callpoints) entry(fn symbols.ID) *callpoint {
	e, ok := cp.entries[fn]
	if !ok {
		e = &callpoint{target: -1}
		cp.entries[fn] = e
	}
	return e
}

// Target returns the address of fn, or -1 when it is not known yet.
func (cp *callpoints) Target(fn symbols.ID) int {
	if e, ok := cp.entries[fn]; ok {
		return e.target
	}
	return -1
}

// Track records that the cell at loc must receive the address of fn. If
// the address is already known the cell is patched at once.
func (cp *callpoints) Track(fn symbols.ID, loc int) {
	e := cp.entry(fn)
	if e.target >= 0 {
		cp.mod.Patch(loc, int32(e.target))
		return
	}
	e.sites = append(e.sites, callSite{loc: loc, chunk: inCodebase})
}

// Set makes target the address of fn and patches every pending site in
// the codebase.
func (cp *callpoints) Set(fn symbols.ID, target int) {
	e := cp.entry(fn)
	e.target = target
	n := 0
	for i := range e.sites {
		s := &e.sites[i]
		if s.chunk != inCodebase {
			continue
		}
		cp.mod.Patch(s.loc, int32(target))
		s.chunk = patched
		n++
	}
	if n > 0 {
		cp.log.Debug().Str("kind", cp.kind).Int("target", target).Int("sites", n).Msg("callpoints patched")
	}
}

// OnYank retags the sites in [start, start+length) as belonging to the
// chunk.
func (cp *callpoints) OnYank(start, length, chunk int) {
	end := start + length
	for _, e := range cp.entries {
		for i := range e.sites {
			s := &e.sites[i]
			if s.chunk == inCodebase && s.loc >= start && s.loc < end {
				s.loc -= start
				s.chunk = chunk
			}
		}
	}
}

// OnWrite is called after the chunk has been written at start. Its sites
// are kept for further writes; a copy of each is added to the codebase, or
// patched at once when the target is known.
func (cp *callpoints) OnWrite(start, chunk int) {
	for _, e := range cp.entries {
		n := len(e.sites)
		for i := 0; i < n; i++ {
			s := e.sites[i]
			if s.chunk != chunk {
				continue
			}
			if e.target >= 0 {
				cp.mod.Patch(start+s.loc, int32(e.target))
				continue
			}
			e.sites = append(e.sites, callSite{loc: start + s.loc, chunk: inCodebase})
		}
	}
}

// Unresolved returns the functions that have sites in the codebase but no
// address, in symbol order.
func (cp *callpoints) Unresolved() []symbols.ID {
	var ids []symbols.ID
	for fn, e := range cp.entries {
		if e.target >= 0 {
			continue
		}
		for _, s := range e.sites {
			if s.chunk == inCodebase {
				ids = append(ids, fn)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
