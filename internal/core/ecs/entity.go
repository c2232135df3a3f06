package ecs

// EntityID packs a slot index into the low 32 bits and that slot's generation
// into the high 32 bits. A destroyed slot bumps its generation, so an ID held
// across a destroy stops matching instead of silently pointing at the reused
// slot. Slot 0 is never handed out, which makes the zero EntityID a safe
// "no entity" sentinel.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// EntityPool allocates entity slots. Freed slots are recycled in LIFO order
// under a fresh generation.
type EntityPool struct {
	gens []uint32 // generation per slot; len(gens) is the next unused slot
	free []uint32
}

func NewEntityPool() *EntityPool {
	p := &EntityPool{gens: make([]uint32, 0, 256)}
	p.gens = append(p.gens, 0) // burn slot 0
	return p
}

func (p *EntityPool) Create() EntityID {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return NewEntityID(idx, p.gens[idx])
	}
	idx := uint32(len(p.gens))
	p.gens = append(p.gens, 0)
	return NewEntityID(idx, 0)
}

// Alive reports whether id names a current entity. Stale IDs from destroyed
// entities and the zero ID both report false.
func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx == 0 || int(idx) >= len(p.gens) {
		return false
	}
	return p.gens[idx] == id.Generation()
}

// Destroy retires id's slot. Stale or unknown IDs are ignored, so double
// destroys are harmless.
func (p *EntityPool) Destroy(id EntityID) {
	idx := id.Index()
	if idx == 0 || int(idx) >= len(p.gens) || p.gens[idx] != id.Generation() {
		return
	}
	p.gens[idx]++
	p.free = append(p.free, idx)
}
