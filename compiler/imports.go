package compiler

import "github.com/agsc-lang/agsc/bytecode"

// importCache maps import names to their index in the module's import
// table so that every name is imported once.
type importCache struct {
	mod   *bytecode.Module
	index map[string]int
}

func newImportCache(mod *bytecode.Module) *importCache {
	ic := &importCache{mod: mod, index: make(map[string]int, len(mod.Imports))}
	for i, name := range mod.Imports {
		if _, ok := ic.index[name]; !ok && name != "" {
			ic.index[name] = i
		}
	}
	return ic
}

// FindOrAdd returns the import index of name, adding it to the module's
// import table if it is new.
func (ic *importCache) FindOrAdd(name string) int {
	if i, ok := ic.index[name]; ok {
		return i
	}
	i := ic.mod.AddImport(name)
	ic.index[name] = i
	return i
}

// Blank empties the import at index i. Indexes of other imports stay
// stable.
func (ic *importCache) Blank(i int) {
	if i < 0 || i >= len(ic.mod.Imports) {
		return
	}
	delete(ic.index, ic.mod.Imports[i])
	ic.mod.Imports[i] = ""
}
