package sysinfo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routeTable = `Iface	Destination	Gateway 	Flags	RefCnt	Use	Metric	Mask		MTU	Window	IRTT
wlan0	00000000	0100A8C0	0003	0	0	600	00000000	0	0	0
wlan0	0000A8C0	00000000	0001	0	0	600	00FFFFFF	0	0	0
eth0	0000000A	00000000	0001	0	0	100	000000FF	0	0	0
short line
`

func TestParseRoutes(t *testing.T) {
	routes, err := ParseRoutes(strings.NewReader(routeTable))
	require.NoError(t, err)
	require.Len(t, routes, 3)

	assert.Equal(t, Route{Interface: "wlan0", Destination: "0.0.0.0", Gateway: "192.168.0.1", Mask: "0.0.0.0"}, routes[0])
	assert.Equal(t, Route{Interface: "wlan0", Destination: "192.168.0.0", Gateway: "0.0.0.0", Mask: "255.255.255.0"}, routes[1])
	assert.Equal(t, "10.0.0.0", routes[2].Destination)
	assert.Equal(t, "255.0.0.0", routes[2].Mask)
}

func TestDefaultGateway(t *testing.T) {
	routes, err := ParseRoutes(strings.NewReader(routeTable))
	require.NoError(t, err)

	assert.Equal(t, "192.168.0.1", DefaultGateway(routes, "wlan0"))
	assert.Equal(t, "192.168.0.1", DefaultGateway(routes, ""))
	assert.Equal(t, "", DefaultGateway(routes, "eth0"))
}

func TestHostRoutesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route")
	require.NoError(t, os.WriteFile(path, []byte(routeTable), 0o644))

	h := Host{RouteFile: path, WLAN: "wlan0"}
	routes, err := h.Routes()
	require.NoError(t, err)
	assert.Len(t, routes, 3)
	assert.Equal(t, "192.168.0.1", h.Gateway())

	missing := Host{RouteFile: filepath.Join(t.TempDir(), "nope")}
	_, err = missing.Routes()
	assert.Error(t, err)
	assert.Equal(t, "", missing.Gateway())
}

func TestNameservers(t *testing.T) {
	conf := "# generated\nsearch example.net\nnameserver 10.0.0.53\nnameserver   1.1.1.1\noptions ndots:1\n"
	assert.Equal(t, []string{"10.0.0.53", "1.1.1.1"}, ParseResolvConf(strings.NewReader(conf)))

	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte(conf), 0o644))
	assert.Equal(t, []string{"10.0.0.53", "1.1.1.1"}, Host{ResolvConf: path}.Nameservers())

	assert.Equal(t, []string{}, Host{ResolvConf: filepath.Join(t.TempDir(), "none")}.Nameservers())
}

func TestInterfacesIncludesLoopback(t *testing.T) {
	ifaces, err := Host{}.Interfaces()
	require.NoError(t, err)
	require.NotEmpty(t, ifaces)
	for _, i := range ifaces {
		if !i.Up {
			assert.Empty(t, i.Addresses, "down interface %s reports addresses", i.Name)
		}
	}
}

func TestSpace(t *testing.T) {
	v, err := Space("videos", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "videos", v.Name)
	assert.LessOrEqual(t, v.Available, v.Total)

	_, err = Space("gone", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func writeFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []struct {
		name string
		size int
		age  time.Duration
	}{
		{"b.mp4", 300, 3 * time.Hour},
		{"a.mp4", 100, 1 * time.Hour},
		{"c.xml", 200, 2 * time.Hour},
	}
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		require.NoError(t, os.WriteFile(p, make([]byte, f.size), 0o644))
		mt := base.Add(-f.age)
		require.NoError(t, os.Chtimes(p, mt, mt))
	}
	return dir
}

func TestList(t *testing.T) {
	dir := writeFiles(t)

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"default", ListOptions{}, []string{"a.mp4", "b.mp4", "c.xml"}},
		{"name reversed", ListOptions{Sort: SortName, Reverse: true}, []string{"c.xml", "b.mp4", "a.mp4"}},
		{"time newest first", ListOptions{Sort: SortTime}, []string{"a.mp4", "c.xml", "b.mp4"}},
		{"size largest first", ListOptions{Sort: SortSize}, []string{"b.mp4", "c.xml", "a.mp4"}},
		{"filter", ListOptions{Filters: []string{"*.mp4"}}, []string{"a.mp4", "b.mp4"}},
		{"filters any", ListOptions{Filters: []string{"*.xml", "a.*"}}, []string{"a.mp4", "c.xml"}},
		{"bad pattern ignored", ListOptions{Filters: []string{"["}}, []string{}},
		{"unknown sort", ListOptions{Sort: "color"}, []string{"a.mp4", "b.mp4", "c.xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := List(dir, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListMissingDir(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "nope"), ListOptions{})
	assert.Error(t, err)
}
