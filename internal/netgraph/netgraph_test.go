// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package netgraph_test

import (
	"net"
	"testing"

	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/netgraph"
)

func mustHostname(t *testing.T, s string) domain.Hostname {
	t.Helper()
	h, err := domain.ParseHostname(s)
	if err != nil {
		t.Fatalf("parse hostname %q: %v", s, err)
	}
	return h
}

func statusOf(t *testing.T, name, externalIP, localIP string, ssh *uint16) (domain.Hostname, domain.MachineStatus) {
	hostname := mustHostname(t, name)
	return hostname, domain.MachineStatus{
		Hostname:      hostname,
		ExternalIP:    net.ParseIP(externalIP),
		SSH:           ssh,
		IPConnections: []domain.IPConnection{{LocalIP: net.ParseIP(localIP)}},
	}
}

func u16(v uint16) *uint16 { return &v }

func TestFindPath_EmptyGraphIsUnreachable(t *testing.T) {
	g := netgraph.Build(map[domain.Hostname]domain.MachineStatus{})
	path := g.FindPath(mustHostname(t, "alpha"), mustHostname(t, "beta"))
	if path != nil {
		t.Fatalf("expected no path in empty graph, got %v", path)
	}
}

func TestFindPath_LANPeersUseDirectHop(t *testing.T) {
	h1, s1 := statusOf(t, "host1", "9.9.9.9", "10.0.0.1", nil)
	h2, s2 := statusOf(t, "host2", "9.9.9.9", "10.0.0.2", nil)
	g := netgraph.Build(map[domain.Hostname]domain.MachineStatus{h1: s1, h2: s2})

	path := g.FindPath(h1, h2)
	if path == nil {
		t.Fatal("expected a path between LAN peers")
	}
	hops := g.PathToHops(path)
	if len(hops) != 1 || !hops[0].IP.Equal(net.ParseIP("10.0.0.2")) || hops[0].Port != 22 {
		t.Fatalf("unexpected hops: %+v", hops)
	}
}

func TestFindPath_InternetOneHopViaForwardedSSH(t *testing.T) {
	h1, s1 := statusOf(t, "host1", "1.1.1.1", "10.0.0.1", nil)
	h2, s2 := statusOf(t, "host2", "2.2.2.2", "10.0.1.1", u16(222))
	g := netgraph.Build(map[domain.Hostname]domain.MachineStatus{h1: s1, h2: s2})

	path := g.FindPath(h1, h2)
	if path == nil {
		t.Fatal("expected a path via the internet node")
	}
	hops := g.PathToHops(path)
	if len(hops) != 1 || !hops[0].IP.Equal(net.ParseIP("2.2.2.2")) || hops[0].Port != 222 {
		t.Fatalf("unexpected hops: %+v", hops)
	}
}

func TestFindPath_InternetTwoHops(t *testing.T) {
	h1, s1 := statusOf(t, "host1", "1.1.1.1", "10.0.0.1", nil)
	h2, s2 := statusOf(t, "host2", "5.5.5.5", "10.0.2.1", u16(222))
	h3, s3 := statusOf(t, "host3", "5.5.5.5", "10.0.2.2", nil)
	g := netgraph.Build(map[domain.Hostname]domain.MachineStatus{h1: s1, h2: s2, h3: s3})

	path := g.FindPath(h1, h3)
	if path == nil {
		t.Fatal("expected a two-hop path")
	}
	hops := g.PathToHops(path)
	if len(hops) != 2 {
		t.Fatalf("expected 2 hops, got %+v", hops)
	}
	if !hops[0].IP.Equal(net.ParseIP("5.5.5.5")) || hops[0].Port != 222 {
		t.Fatalf("unexpected first hop: %+v", hops[0])
	}
	if !hops[1].IP.Equal(net.ParseIP("10.0.2.2")) || hops[1].Port != 22 {
		t.Fatalf("unexpected second hop: %+v", hops[1])
	}
}

func TestFindPath_ImpossibleWithoutForwardedSSH(t *testing.T) {
	h1, s1 := statusOf(t, "host1", "1.1.1.1", "10.0.0.1", nil)
	h2, s2 := statusOf(t, "host2", "5.5.5.5", "10.0.2.1", u16(22))
	h3, s3 := statusOf(t, "host3", "5.5.5.5", "10.0.2.2", nil)
	g := netgraph.Build(map[domain.Hostname]domain.MachineStatus{h1: s1, h2: s2, h3: s3})

	path := g.FindPath(h3, h1)
	if path != nil {
		t.Fatalf("expected no path when destination has no forwarded ssh, got %v", path)
	}
}

func TestProxyArgs_ChainsWithoutTrailingSSH(t *testing.T) {
	hops := []netgraph.Hop{
		{IP: net.ParseIP("1.1.1.1"), Port: 222},
		{IP: net.ParseIP("10.0.0.2"), Port: 22},
	}
	args := netgraph.ProxyArgs(hops, "alice")
	want := []string{"-t", "alice@1.1.1.1", "ssh", "-t", "alice@10.0.0.2"}
	if len(args) != len(want) {
		t.Fatalf("unexpected args: %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("unexpected args: %v", args)
		}
	}
}
