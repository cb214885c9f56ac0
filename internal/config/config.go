// Package config loads the YAML configuration surface of §6 and builds
// the running instance.Instance plus its interfaces from it. It is the
// only place in this repo that turns static text into live eigrpd
// objects; everything downstream takes its input as already-validated
// Go types.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/diivious/eigrpd/internal/addr"
	"github.com/diivious/eigrpd/internal/filter"
	"github.com/diivious/eigrpd/internal/iface"
	"github.com/diivious/eigrpd/internal/instance"
	"github.com/diivious/eigrpd/internal/keychain"
	"github.com/diivious/eigrpd/internal/metric"
	"github.com/diivious/eigrpd/internal/metrics"
	"github.com/diivious/eigrpd/internal/routemgr"
)

// KValues is the wire-order K1..K6 weighting vector, defaulting to
// (1,0,1,0,0,0) per §6 when a config omits it entirely.
type KValues struct {
	K1 uint8 `yaml:"k1"`
	K2 uint8 `yaml:"k2"`
	K3 uint8 `yaml:"k3"`
	K4 uint8 `yaml:"k4"`
	K5 uint8 `yaml:"k5"`
	K6 uint8 `yaml:"k6"`
}

// KeyEntry is one key-chain send/receive key.
type KeyEntry struct {
	ID     uint32 `yaml:"id"`
	String string `yaml:"key"`
	SendOK bool   `yaml:"send"`
}

// InterfaceConfig is the per-interface metric, timer, authentication,
// and filter surface of §6.
type InterfaceConfig struct {
	Name          string        `yaml:"name"`
	Address       string        `yaml:"address"` // "a.b.c.d/n"
	BandwidthKbps uint64        `yaml:"bandwidth"`
	DelayTens     uint32        `yaml:"delay"` // tens of microseconds
	HelloInterval time.Duration `yaml:"hello_interval"`
	HoldTime      time.Duration `yaml:"hold_time"`
	Passive       bool          `yaml:"passive"`

	AuthMode string `yaml:"auth_mode"` // "", "md5", "sha256"
	KeyChain string `yaml:"key_chain"`

	DistributeListIn  string `yaml:"distribute_list_in"`
	DistributeListOut string `yaml:"distribute_list_out"`
}

// PrefixListRule mirrors filter.Rule for YAML decoding.
type PrefixListRule struct {
	Network     string `yaml:"network"`
	Permit      bool   `yaml:"permit"`
	ExactLength bool   `yaml:"exact_length"`
}

// PrefixListConfig is a named, ordered rule sequence bound to a
// distribute-list name.
type PrefixListConfig struct {
	Name  string           `yaml:"name"`
	Rules []PrefixListRule `yaml:"rules"`
}

// File is the top-level shape of an eigrpd YAML configuration file,
// mirroring §6's `router eigrp AS [vrf V]` block and its children.
type File struct {
	AS   uint16 `yaml:"as"`
	VRID uint16 `yaml:"vrf"`

	KValues  KValues `yaml:"k_values"`
	Variance uint64  `yaml:"variance"`
	MaxPaths int     `yaml:"maximum_paths"`

	RouteTable int `yaml:"route_table"` // kernel table, 0 = main

	KeyChains   map[string][]KeyEntry `yaml:"key_chains"`
	PrefixLists []PrefixListConfig    `yaml:"prefix_lists"`
	Interfaces  []InterfaceConfig     `yaml:"interfaces"`

	LogLevel string `yaml:"log_level"`
}

// Load reads and parses a YAML config file. It applies §6's documented
// defaults (K-vector 1,0,1,0,0,0; variance 1; maximum-paths 4) for any
// field the file leaves zero, but otherwise performs no validation —
// that is Build's job, since defaulting and validation happen at
// different layers in a real config pipeline (the loader accepts
// syntactically valid YAML; Build rejects semantically invalid
// configuration).
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if f.KValues == (KValues{}) {
		f.KValues = KValues{K1: 1, K3: 1}
	}
	if f.Variance == 0 {
		f.Variance = 1
	}
	if f.MaxPaths == 0 {
		f.MaxPaths = 4
	}
	return &f, nil
}

// Built bundles the Instance and the interfaces it was given, since a
// caller (cmd/eigrpd) also needs the Interface values themselves to
// decide socket/group join ordering.
type Built struct {
	Instance   *instance.Instance
	Interfaces []*iface.Interface
}

// Build turns a loaded File into a ready-to-run instance.Instance and
// its bound Interfaces. sock and log are supplied by the caller rather
// than constructed here, so tests can pass a fake Socket and a
// discarding logger without touching the filesystem or the network.
func Build(f *File, sock instance.Socket, log *logrus.Logger, reg *metrics.Registry) (*Built, error) {
	if log == nil {
		log = logrus.New()
	}
	if lvl, err := logrus.ParseLevel(f.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	kc := keychain.New()
	for _, entries := range f.KeyChains {
		for _, e := range entries {
			kc.Add(keychain.Key{ID: e.ID, String: []byte(e.String), SendOK: e.SendOK})
		}
	}

	fl := filter.New()
	for _, pl := range f.PrefixLists {
		rules := make([]filter.Rule, 0, len(pl.Rules))
		for _, r := range pl.Rules {
			network, err := addr.ParseCIDR(r.Network)
			if err != nil {
				return nil, fmt.Errorf("config: prefix-list %s: %w", pl.Name, err)
			}
			rules = append(rules, filter.Rule{Network: network, Permit: r.Permit, ExactLength: r.ExactLength})
		}
		fl.Add(filter.List{Name: pl.Name, Rules: rules})
	}

	rm := routemgr.NewNetlink(f.RouteTable, log.WithField("component", "routemgr"))

	in, err := instance.New(instance.Config{
		AS:         f.AS,
		VRID:       f.VRID,
		K:          metric.KVector{K1: f.KValues.K1, K2: f.KValues.K2, K3: f.KValues.K3, K4: f.KValues.K4, K5: f.KValues.K5, K6: f.KValues.K6},
		Variance:   f.Variance,
		MaxPaths:   f.MaxPaths,
		RouteMgr:   rm,
		Keychain:   kc,
		Filters:    *fl,
		Log:        log,
		MetricsReg: reg,
		Socket:     sock,
	})
	if err != nil {
		return nil, err
	}

	ifaces := make([]*iface.Interface, 0, len(f.Interfaces))
	for _, ic := range f.Interfaces {
		address, err := addr.ParseCIDR(ic.Address)
		if err != nil {
			return nil, fmt.Errorf("config: interface %s: %w", ic.Name, err)
		}
		ei := iface.New(ic.Name, address)
		ei.Params = iface.Params{
			BandwidthKbps:     orDefault(ic.BandwidthKbps, 1_000_000),
			DelayTens:         orDefault32(ic.DelayTens, 100),
			HelloInterval:     orDefaultDuration(ic.HelloInterval, 5*time.Second),
			HoldTime:          orDefaultDuration(ic.HoldTime, 15*time.Second),
			Passive:           ic.Passive,
			AuthMode:          parseAuthMode(ic.AuthMode),
			KeyChain:          ic.KeyChain,
			DistributeListIn:  ic.DistributeListIn,
			DistributeListOut: ic.DistributeListOut,
		}
		if ei.Params.AuthMode != iface.AuthNone && ic.KeyChain == "" {
			return nil, fmt.Errorf("config: interface %s: authentication configured without a key-chain", ic.Name)
		}
		in.AddInterface(ei)
		ifaces = append(ifaces, ei)
	}

	return &Built{Instance: in, Interfaces: ifaces}, nil
}

func parseAuthMode(s string) iface.AuthMode {
	switch s {
	case "md5":
		return iface.AuthMD5
	case "sha256":
		return iface.AuthSHA256
	default:
		return iface.AuthNone
	}
}

func orDefault(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefault32(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}
