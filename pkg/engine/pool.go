package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Handle addresses an entry in a DataPool. The generation counter is bumped
// every time a slot is reused, so a handle kept across a Pop fails fast
// instead of silently aliasing the slot's new occupant.
type Handle struct {
	Index int
	Gen   uint64
}

// String renders the handle in its serialized "<index>:<gen>" form.
func (h Handle) String() string {
	return strconv.Itoa(h.Index) + ":" + strconv.FormatUint(h.Gen, 10)
}

// ParseHandle parses the serialized "<index>:<gen>" form.
func ParseHandle(s string) (Handle, error) {
	idxStr, genStr, found := strings.Cut(s, ":")
	if !found {
		return Handle{}, NewValidationError(
			fmt.Sprintf("handle %q is not in <index>:<gen> form", s),
			nil).WithCode(ErrCodeSerialFormat)
	}

	index, err := strconv.Atoi(idxStr)
	if err != nil {
		return Handle{}, NewValidationError(
			fmt.Sprintf("handle %q has a non-integer index", s),
			err).WithCode(ErrCodeSerialFormat)
	}

	gen, err := strconv.ParseUint(genStr, 10, 64)
	if err != nil {
		return Handle{}, NewValidationError(
			fmt.Sprintf("handle %q has a non-integer generation", s),
			err).WithCode(ErrCodeSerialFormat)
	}

	return Handle{Index: index, Gen: gen}, nil
}

type poolEntry struct {
	data  *Data
	gen   uint64
	links int
	live  bool
}

// DataPool is an arena of Data values shared by one or more simulations.
// Slots are addressed by generation-checked handles and carry a link count
// maintained by callers through Link and Unlink. The pool never reclaims
// entries on its own; the owning component runs Compact to sweep zero-link
// entries.
type DataPool struct {
	entries []poolEntry
	live    int
}

// NewDataPool creates an empty pool.
func NewDataPool() *DataPool {
	return &DataPool{}
}

// Add stores a value in the smallest free slot and returns its handle. The
// new entry starts with zero links.
func (p *DataPool) Add(data *Data) Handle {
	for i := range p.entries {
		if p.entries[i].live {
			continue
		}
		p.entries[i].data = data
		p.entries[i].gen++
		p.entries[i].links = 0
		p.entries[i].live = true
		p.live++
		return Handle{Index: i, Gen: p.entries[i].gen}
	}

	p.entries = append(p.entries, poolEntry{data: data, gen: 1, live: true})
	p.live++
	return Handle{Index: len(p.entries) - 1, Gen: 1}
}

// restore places an entry at an exact slot and generation, used when
// rebuilding a pool from serialised form. Occupied slots are replaced.
func (p *DataPool) restore(h Handle, data *Data, links int) {
	for h.Index >= len(p.entries) {
		p.entries = append(p.entries, poolEntry{})
	}

	if !p.entries[h.Index].live {
		p.live++
	}

	p.entries[h.Index] = poolEntry{
		data:  data,
		gen:   h.Gen,
		links: links,
		live:  true,
	}
}

func (p *DataPool) lookup(h Handle) (*poolEntry, error) {
	if h.Index < 0 || h.Index >= len(p.entries) {
		return nil, NewNotFoundError(
			fmt.Sprintf("no pool entry at index %d", h.Index),
			nil).WithCode(ErrCodeNotFound)
	}

	entry := &p.entries[h.Index]
	if !entry.live {
		return nil, NewNotFoundError(
			fmt.Sprintf("pool entry %d has been removed", h.Index),
			nil).WithCode(ErrCodeNotFound)
	}
	if entry.gen != h.Gen {
		return nil, NewConsistencyError(
			fmt.Sprintf("handle %s is stale: slot is at generation %d",
				h, entry.gen),
			nil).WithCode(ErrCodeStaleHandle)
	}

	return entry, nil
}

// Get returns the value addressed by the handle.
func (p *DataPool) Get(h Handle) (*Data, error) {
	entry, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	return entry.data, nil
}

// Copy deep-copies the addressed value into a new slot.
func (p *DataPool) Copy(h Handle) (Handle, error) {
	entry, err := p.lookup(h)
	if err != nil {
		return Handle{}, err
	}
	return p.Add(entry.data.DeepCopy()), nil
}

// Replace swaps the value in place, keeping the handle valid.
func (p *DataPool) Replace(h Handle, data *Data) error {
	entry, err := p.lookup(h)
	if err != nil {
		return err
	}
	entry.data = data
	return nil
}

// Pop removes the entry and returns its value. The caller must have
// already released all links; Pop itself only checks handle validity.
func (p *DataPool) Pop(h Handle) (*Data, error) {
	entry, err := p.lookup(h)
	if err != nil {
		return nil, err
	}

	data := entry.data
	entry.data = nil
	entry.links = 0
	entry.live = false
	p.live--

	return data, nil
}

// Link records one more reference to the entry.
func (p *DataPool) Link(h Handle) error {
	entry, err := p.lookup(h)
	if err != nil {
		return err
	}
	entry.links++
	return nil
}

// Unlink releases one reference. Unlinking an entry with zero links is a
// double-release bug in the caller and returns a consistency error.
func (p *DataPool) Unlink(h Handle) error {
	entry, err := p.lookup(h)
	if err != nil {
		return err
	}

	if entry.links == 0 {
		return NewConsistencyError(
			fmt.Sprintf("pool entry %s has no recorded links", h),
			nil).WithCode(ErrCodeConsistency)
	}

	entry.links--
	return nil
}

// HasLink reports whether the entry has at least one link.
func (p *DataPool) HasLink(h Handle) (bool, error) {
	entry, err := p.lookup(h)
	if err != nil {
		return false, err
	}
	return entry.links > 0, nil
}

// Links returns the entry's current link count.
func (p *DataPool) Links(h Handle) (int, error) {
	entry, err := p.lookup(h)
	if err != nil {
		return 0, err
	}
	return entry.links, nil
}

// Count returns the number of live entries.
func (p *DataPool) Count() int {
	return p.live
}

// Handles returns the handles of all live entries in slot order.
func (p *DataPool) Handles() []Handle {
	handles := make([]Handle, 0, p.live)
	for i := range p.entries {
		if !p.entries[i].live {
			continue
		}
		handles = append(handles, Handle{Index: i, Gen: p.entries[i].gen})
	}
	return handles
}

// Compact sweeps all zero-link entries out of the pool and returns the
// number removed. Only the owning component should call this; any handle to
// a swept entry becomes invalid.
func (p *DataPool) Compact() int {
	swept := 0
	for i := range p.entries {
		if !p.entries[i].live || p.entries[i].links > 0 {
			continue
		}
		p.entries[i].data = nil
		p.entries[i].live = false
		p.live--
		swept++
	}
	return swept
}

// MirrorLinks snapshots the link count of every live entry. Diagnostic use
// only.
func (p *DataPool) MirrorLinks() map[Handle]int {
	mirror := make(map[Handle]int, p.live)
	for i := range p.entries {
		if !p.entries[i].live {
			continue
		}
		mirror[Handle{Index: i, Gen: p.entries[i].gen}] = p.entries[i].links
	}
	return mirror
}
