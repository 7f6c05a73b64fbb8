// Package pool implements a process-wide, append-only string interner.
// All column storage in coltable references text through pool ids rather
// than carrying byte strings directly.
package pool

// NullID is the reserved id for the empty/null string. It is always
// valid and always resolves to an empty byte slice.
const NullID uint32 = 0

// Pool interns byte strings into stable 32-bit ids. Ids are valid for
// the lifetime of the Pool and the Pool never shrinks.
//
// Threading: single-writer. Readers may call Resolve concurrently with
// each other, but never concurrently with Intern — the pool does not
// synchronize internally (matching §3.2's "engine holds ownership"
// model; the engine serializes writer access).
type Pool struct {
	strings []string
	ids     map[string]uint32
}

// New returns an empty pool with the null id already reserved.
func New() *Pool {
	p := &Pool{
		strings: []string{""},
		ids:     make(map[string]uint32),
	}
	p.ids[""] = NullID
	return p
}

// Intern returns the stable id for s, allocating a new one if s has
// never been interned before.
func (p *Pool) Intern(s string) uint32 {
	if s == "" {
		return NullID
	}
	if id, ok := p.ids[s]; ok {
		return id
	}
	id := uint32(len(p.strings))
	p.strings = append(p.strings, s)
	p.ids[s] = id
	return id
}

// Resolve returns the bytes for an id previously returned by Intern (or
// NullID). It panics if the id was never issued by this pool, since that
// signals a core invariant violation rather than recoverable user error.
func (p *Pool) Resolve(id uint32) string {
	if int(id) >= len(p.strings) {
		panic("pool: resolve of id never issued by this pool")
	}
	return p.strings[id]
}

// Len returns the number of distinct strings interned, including the
// reserved null string.
func (p *Pool) Len() int {
	return len(p.strings)
}
