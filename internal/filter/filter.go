// Package filter provides the access-list/prefix-list boolean predicate
// the core invokes at (instance|interface) x (in|out) boundaries — §4.6.
// Matching engines themselves are out of scope (§1); this package defines
// the Predicate contract and a minimal prefix-list-shaped implementation
// good enough to drive distribute-list config and tests.
package filter

import "github.com/diivious/eigrpd/internal/addr"

// Direction is which boundary a filter applies to.
type Direction int

const (
	In Direction = iota
	Out
)

// Predicate answers whether prefix is permitted by the named list in the
// given direction. The core never inspects list contents directly.
type Predicate interface {
	Permit(listName string, direction Direction, prefix addr.Address) bool
}

// Rule is one entry of a simple sequential prefix-list: the first rule
// whose network contains the candidate prefix decides the outcome.
type Rule struct {
	Network addr.Address
	Permit  bool
	// ExactLength, if true, requires the candidate's prefix length to
	// equal Network's exactly rather than merely nest within it.
	ExactLength bool
}

// List is a named, ordered sequence of Rules.
type List struct {
	Name  string
	Rules []Rule
}

// Lists is a simple in-memory Predicate backed by named Lists, applied
// the same regardless of Direction (distinct in/out lists are simply
// distinct names under the distribute-list config surface of §6).
type Lists struct {
	byName map[string]*List
}

// New creates an empty filter set. Absent a matching list, Permit
// defaults to true (no filter configured means no restriction).
func New() *Lists {
	return &Lists{byName: map[string]*List{}}
}

// Add registers or replaces a named list.
func (f *Lists) Add(l List) {
	f.byName[l.Name] = &l
}

// Permit implements Predicate.
func (f *Lists) Permit(listName string, _ Direction, prefix addr.Address) bool {
	l, ok := f.byName[listName]
	if !ok {
		return true
	}
	for _, r := range l.Rules {
		if r.ExactLength && r.Network.PrefixLen != prefix.PrefixLen {
			continue
		}
		if r.Network.Contains(prefix) {
			return r.Permit
		}
	}
	return false
}
