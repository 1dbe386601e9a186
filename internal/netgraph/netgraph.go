// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package netgraph builds a directed weighted graph from the latest machine
// statuses and finds multi-hop SSH routes across NATs: every machine reaches
// a single Internet node, the Internet node reaches back only machines with
// a forwarded SSH port, and machines sharing an external IP are treated as
// LAN peers reachable on both directions.
package netgraph

import (
	"container/heap"
	"net"

	"github.com/fleetward/spark/internal/domain"
)

const (
	weightInternet = 100
	weightLAN      = 1
)

const internetNodeID = 0

type node struct {
	hostname domain.Hostname
	status   domain.MachineStatus
	isMachine bool
}

// route is the (external_ip, ssh_port) pair the Internet node forwards to a
// given machine, installed when that machine advertises an SSH port.
type route struct {
	ip   net.IP
	port uint16
}

// Graph is an immutable snapshot built from one set of MachineStatus rows.
// Construct a fresh Graph whenever the underlying statuses change; it is not
// updated in place.
type Graph struct {
	nodes   []node                 // index 0 is always the Internet node
	byHost  map[string]int         // hostname -> node index
	edges   map[int]map[int]int    // adjacency with weights
	routing map[int]route          // Internet's table: machine index -> (ip, port)
}

// Build constructs the graph described in the package doc from statuses.
func Build(statuses map[domain.Hostname]domain.MachineStatus) *Graph {
	g := &Graph{
		byHost:  make(map[string]int),
		edges:   make(map[int]map[int]int),
		routing: make(map[int]route),
	}
	g.nodes = append(g.nodes, node{}) // Internet sentinel at index 0

	for hostname, status := range statuses {
		idx := len(g.nodes)
		g.nodes = append(g.nodes, node{hostname: hostname, status: status, isMachine: true})
		g.byHost[hostname.String()] = idx
		g.addEdge(idx, 0, weightInternet)

		if status.SSH != nil {
			g.addEdge(0, idx, weightInternet)
			g.routing[idx] = route{ip: status.ExternalIP, port: *status.SSH}
		}
	}

	for i := 1; i < len(g.nodes); i++ {
		for j := 1; j < len(g.nodes); j++ {
			if i == j {
				continue
			}
			if sameNAT(g.nodes[i].status, g.nodes[j].status) {
				g.addEdge(i, j, weightLAN)
			}
		}
	}

	return g
}

func sameNAT(a, b domain.MachineStatus) bool {
	return a.ExternalIP != nil && b.ExternalIP != nil && a.ExternalIP.Equal(b.ExternalIP)
}

func (g *Graph) addEdge(from, to, weight int) {
	if g.edges[from] == nil {
		g.edges[from] = make(map[int]int)
	}
	g.edges[from][to] = weight
}

// heapItem is one entry in the Dijkstra priority queue.
type heapItem struct {
	node int
	dist int
}

type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool   { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)        { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)          { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// FindPath runs Dijkstra (A* with a zero heuristic) from src to dst and
// returns the sequence of node indices, or nil if dst is unreachable from
// src. The sequence always starts at src's index and, when non-nil, never
// ends on the Internet node (a path cannot terminate there).
func (g *Graph) FindPath(src, dst domain.Hostname) []int {
	from, ok := g.byHost[src.String()]
	if !ok {
		return nil
	}
	to, ok := g.byHost[dst.String()]
	if !ok {
		return nil
	}

	dist := make(map[int]int)
	prev := make(map[int]int)
	dist[from] = 0

	pq := &minHeap{{node: from, dist: 0}}
	heap.Init(pq)
	visited := make(map[int]bool)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(heapItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		if cur.node == to {
			break
		}
		for next, w := range g.edges[cur.node] {
			if visited[next] {
				continue
			}
			nd := cur.dist + w
			if d, ok := dist[next]; !ok || nd < d {
				dist[next] = nd
				prev[next] = cur.node
				heap.Push(pq, heapItem{node: next, dist: nd})
			}
		}
	}

	if !visited[to] {
		return nil
	}

	path := []int{to}
	for path[len(path)-1] != from {
		p, ok := prev[path[len(path)-1]]
		if !ok {
			return nil
		}
		path = append(path, p)
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Hop is one SSH jump: dial ip:22 (a direct machine hop) or ip:port (a
// port-forwarded Internet hop).
type Hop struct {
	IP   net.IP
	Port uint16
}

// PathToHops converts a FindPath result (which includes the source node at
// index 0) into the hop list a caller dials through, skipping the source
// itself. It mirrors the Internet node's routing table to resolve the
// forwarded (external_ip, port) for the machine immediately following it.
func (g *Graph) PathToHops(path []int) []Hop {
	if len(path) == 0 {
		return nil
	}
	var hops []Hop
	for i := 1; i < len(path); i++ {
		idx := path[i]
		n := g.nodes[idx]
		if n.isMachine {
			if len(n.status.IPConnections) == 0 {
				return nil
			}
			hops = append(hops, Hop{IP: n.status.IPConnections[0].LocalIP, Port: 22})
			continue
		}
		// Internet node: the path must continue to a machine next.
		i++
		if i >= len(path) {
			return nil // a path may not end on the Internet node
		}
		next := path[i]
		r, ok := g.routing[next]
		if !ok {
			return nil
		}
		hops = append(hops, Hop{IP: r.ip, Port: r.port})
	}
	return hops
}

// ProxyArgs renders hops as a chained `ssh -t user@ip ssh -t user@ip ...`
// argument list, omitting the final "ssh" (the caller's own exec replaces
// it): ["-t","user@ip1","ssh","-t","user@ip2",...,"user@ipN"].
func ProxyArgs(hops []Hop, user string) []string {
	args := make([]string, 0, len(hops)*3)
	for i, hop := range hops {
		args = append(args, "-t", user+"@"+hop.IP.String())
		if i != len(hops)-1 {
			args = append(args, "ssh")
		}
	}
	return args
}
