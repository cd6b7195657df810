package symbols

// Snapshot returns a fresh table for the main pass. Every name keeps its ID
// so that a token stream produced against t stays valid. Only literals and
// function headers survive: function offsets are reset, and a function keeps
// its import qualifier only when no local body was seen for it.
func (t *Table) Snapshot() *Table {
	n := &Table{
		entries: make([]Entry, len(t.entries)),
		index:   make(map[string]ID, len(t.index)),
	}
	for name, id := range t.index {
		n.index[name] = id
	}
	for i, e := range t.entries {
		n.entries[i] = Entry{Name: e.Name}
		if e.Data == nil {
			continue
		}
		if i < int(numPredefined) {
			n.entries[i].Data = e.Data.clone()
			continue
		}
		switch d := e.Data.(type) {
		case *Literal:
			n.entries[i].Data = d.clone()
		case *Function:
			f := d.clone().(*Function)
			f.Qualifiers.Import = d.Qualifiers.Import && !d.HasBody
			if !f.Qualifiers.Import {
				f.Qualifiers.TryImport = false
			}
			f.Offset = -1
			f.Defined = false
			n.entries[i].Data = f
			n.entries[i].Section = e.Section
			n.entries[i].Line = e.Line
		}
	}
	return n
}
