package routemgr

import "github.com/diivious/eigrpd/internal/addr"

// Memory is an in-process Manager used by tests. It records every Install/Withdraw call count so
// tests can assert the idempotence property of §8.
type Memory struct {
	Installs map[[5]byte]installed
	InstallCalls  int
	WithdrawCalls int
	handlers []func(InterfaceEvent)
}

// NewMemory creates an empty in-memory route manager.
func NewMemory() *Memory {
	return &Memory{Installs: map[[5]byte]installed{}}
}

func (m *Memory) Install(prefix addr.Address, gateways []Gateway, adminDistance uint32) error {
	key := prefix.Key()
	if prev, ok := m.Installs[key]; ok && sameGateways(prev.gateways, gateways) && prev.distance == adminDistance {
		return nil
	}
	m.Installs[key] = installed{gateways: gateways, distance: adminDistance}
	m.InstallCalls++
	return nil
}

func (m *Memory) Withdraw(prefix addr.Address) error {
	key := prefix.Key()
	if _, ok := m.Installs[key]; !ok {
		return nil
	}
	delete(m.Installs, key)
	m.WithdrawCalls++
	return nil
}

func (m *Memory) Subscribe(handler func(InterfaceEvent)) {
	m.handlers = append(m.handlers, handler)
}

// Emit delivers an InterfaceEvent to every subscriber, used by tests to
// simulate link/address changes.
func (m *Memory) Emit(ev InterfaceEvent) {
	for _, h := range m.handlers {
		h(ev)
	}
}

// Has reports whether prefix is currently installed.
func (m *Memory) Has(prefix addr.Address) bool {
	_, ok := m.Installs[prefix.Key()]
	return ok
}
