// Package dup implements duplication policies and the duplication task
// processor: one-way, checksum-verified replication of content between
// storage providers.
package dup

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrPolicyFormat indicates a serialized policy that cannot be parsed.
var ErrPolicyFormat = errors.New("malformed duplication policy")

// StorePolicy names a duplication destination: which provider and which
// space within it. Equality is by value and drives set deduplication.
type StorePolicy struct {
	DestStoreID string `json:"storeId"`
	DestSpaceID string `json:"spaceId"`
}

// Policy maps each space of an account to the ordered set of destinations
// its content is duplicated to. The first destination listed for a space
// is the primary replication target by convention. Policy values are not
// safe for concurrent mutation; share them read-only once built.
type Policy struct {
	spaces map[string][]StorePolicy
}

// NewPolicy returns an empty policy.
func NewPolicy() *Policy {
	return &Policy{spaces: make(map[string][]StorePolicy)}
}

// AddStorePolicy adds a destination for the given space. Returns false and
// leaves the policy unchanged if an equal destination is already present.
// Insertion order within a space is preserved.
func (p *Policy) AddStorePolicy(spaceID string, sp StorePolicy) bool {
	for _, existing := range p.spaces[spaceID] {
		if existing == sp {
			return false
		}
	}
	p.spaces[spaceID] = append(p.spaces[spaceID], sp)
	return true
}

// StorePolicies returns the ordered destinations for a space. A space with
// no entry returns nil; such spaces are simply not replicated.
func (p *Policy) StorePolicies(spaceID string) []StorePolicy {
	return p.spaces[spaceID]
}

// Spaces returns the space IDs that have at least one destination, sorted.
func (p *Policy) Spaces() []string {
	ids := make([]string, 0, len(p.spaces))
	for id := range p.spaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Marshall serializes the policy as a JSON document mapping space ID to
// its ordered destination list.
func (p *Policy) Marshall() ([]byte, error) {
	return json.Marshal(p.spaces)
}

// UnmarshallPolicy parses a serialized policy. Unknown fields inside
// destination entries are ignored for forward compatibility. Duplicate
// destinations within a space collapse to the first occurrence.
func UnmarshallPolicy(data []byte) (*Policy, error) {
	var raw map[string][]StorePolicy
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyFormat, err)
	}
	p := NewPolicy()
	for spaceID, dests := range raw {
		for _, sp := range dests {
			p.AddStorePolicy(spaceID, sp)
		}
	}
	return p, nil
}
