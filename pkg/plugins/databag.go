package plugins

import (
	"fmt"
	"sort"
)

// DataBag is the per-call value namespace handed to an interface's Connect
// method. Values are keyed by the interface's local aliases; the universal
// accessors translate through the id map, so neither side of the interface
// sees the other's naming.
type DataBag struct {
	values  map[string]any
	toLocal map[string]string
}

// NewDataBag creates a bag for an interface, pre-populating every declared
// variable with nil. The interface's id map, when present, drives the
// universal-to-local translation; otherwise identifiers are used directly.
func NewDataBag(iface Interface) (*DataBag, error) {
	idMap := iface.DeclareIDMap()

	bag := &DataBag{
		values:  make(map[string]any),
		toLocal: make(map[string]string, len(idMap)),
	}

	if len(idMap) > 0 {
		for local, universal := range idMap {
			if _, ok := bag.values[local]; ok {
				return nil, fmt.Errorf(
					"interface %s declares local name %q more than once",
					iface.Name(), local)
			}
			bag.values[local] = nil
			bag.toLocal[universal] = local
		}
		return bag, nil
	}

	for _, id := range AllVariableIDs(iface) {
		bag.values[id] = nil
		bag.toLocal[id] = id
	}

	return bag, nil
}

// Get returns the value under a local alias.
func (b *DataBag) Get(local string) any {
	return b.values[local]
}

// Set stores a value under a local alias.
func (b *DataBag) Set(local string, value any) {
	b.values[local] = value
}

// Has reports whether a local alias is known to the bag.
func (b *DataBag) Has(local string) bool {
	_, ok := b.values[local]
	return ok
}

// Keys returns the known local aliases, sorted.
func (b *DataBag) Keys() []string {
	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PutData stores a value under a universal identifier, translating through
// the id map. Used by the core to load resolved inputs before Connect.
func (b *DataBag) PutData(universal string, value any) error {
	local, ok := b.toLocal[universal]
	if !ok {
		return fmt.Errorf("identifier %s not recognised", universal)
	}
	b.values[local] = value
	return nil
}

// GetData returns the value under a universal identifier, translating
// through the id map. Used by the core to harvest outputs after Connect.
func (b *DataBag) GetData(universal string) (any, error) {
	local, ok := b.toLocal[universal]
	if !ok {
		return nil, fmt.Errorf("identifier %s not recognised", universal)
	}
	return b.values[local], nil
}
