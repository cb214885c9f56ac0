// Package keychain provides a minimal in-memory implementation of the
// auth.Keychain external-collaborator contract (§4.6). Real deployments
// back this with the key-chain config store; this implementation exists
// so cmd/eigrpd and the test suite have a concrete keychain without
// depending on the (out-of-scope) config loader.
package keychain

import "fmt"

// Key is one entry in a key chain: an id, a secret string, and whether it
// is currently eligible to send with.
type Key struct {
	ID        uint32
	String    []byte
	SendOK    bool
}

// Memory is a simple in-memory keychain keyed by key id, lowest-id-first
// send preference (matching typical key-chain "lowest valid key id"
// send-key selection).
type Memory struct {
	keys []Key
}

// New creates an empty in-memory keychain.
func New() *Memory {
	return &Memory{}
}

// Add inserts or replaces a key.
func (m *Memory) Add(k Key) {
	for i, existing := range m.keys {
		if existing.ID == k.ID {
			m.keys[i] = k
			return
		}
	}
	m.keys = append(m.keys, k)
}

// CurrentSendKey returns the lowest-id key marked SendOK.
func (m *Memory) CurrentSendKey() (uint32, []byte, error) {
	var best *Key
	for i := range m.keys {
		k := &m.keys[i]
		if !k.SendOK {
			continue
		}
		if best == nil || k.ID < best.ID {
			best = k
		}
	}
	if best == nil {
		return 0, nil, fmt.Errorf("keychain: no usable send key configured")
	}
	return best.ID, best.String, nil
}

// Lookup finds a key by id regardless of SendOK, used to verify received
// packets signed with any currently valid key.
func (m *Memory) Lookup(keyID uint32) ([]byte, bool) {
	for _, k := range m.keys {
		if k.ID == keyID {
			return k.String, true
		}
	}
	return nil, false
}
