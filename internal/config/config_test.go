package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diivious/eigrpd/internal/iface"
)

type fakeSocket struct{}

func (fakeSocket) WriteTo(ifName string, dest net.IP, b []byte) error { return nil }
func (fakeSocket) WriteMulticast(ifName string, b []byte) error       { return nil }
func (fakeSocket) JoinGroup(ifName string) error                      { return nil }
func (fakeSocket) Close() error                                       { return nil }

const sampleYAML = `
as: 100
variance: 2
maximum_paths: 2
interfaces:
  - name: eth0
    address: 10.0.0.1/30
    bandwidth: 10000
    delay: 100
    distribute_list_out: block-external
prefix_lists:
  - name: block-external
    rules:
      - network: 192.168.0.0/16
        permit: false
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eigrpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDocumentedDefaults(t *testing.T) {
	path := writeTempConfig(t, "as: 100\n")
	f, err := Load(path)
	require.NoError(t, err)
	if f.KValues.K1 != 1 || f.KValues.K3 != 1 || f.KValues.K2 != 0 {
		t.Fatalf("expected default K-vector 1,0,1,0,0,0, got %+v", f.KValues)
	}
	if f.Variance != 1 {
		t.Fatalf("expected default variance 1, got %d", f.Variance)
	}
	if f.MaxPaths != 4 {
		t.Fatalf("expected default maximum-paths 4, got %d", f.MaxPaths)
	}
}

func TestBuildWiresInterfacesAndFilters(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	f, err := Load(path)
	require.NoError(t, err)
	built, err := Build(f, fakeSocket{}, nil, nil)
	require.NoError(t, err)
	if len(built.Interfaces) != 1 {
		t.Fatalf("expected one interface, got %d", len(built.Interfaces))
	}
	if built.Instance.Variance != 2 {
		t.Fatalf("expected variance 2 carried through, got %d", built.Instance.Variance)
	}
	if got := built.Interfaces[0].Params.DistributeListOut; got != "block-external" {
		t.Fatalf("expected distribute-list-out wired, got %q", got)
	}
}

func TestBuildRejectsAuthModeWithoutKeyChain(t *testing.T) {
	path := writeTempConfig(t, `
as: 100
interfaces:
  - name: eth0
    address: 10.0.0.1/30
    auth_mode: md5
`)
	f, err := Load(path)
	require.NoError(t, err)
	_, err = Build(f, fakeSocket{}, nil, nil)
	require.Error(t, err)
}

var _ = iface.AuthNone
