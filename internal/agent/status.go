// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package agent is the machine-side runtime: it publishes periodic status
// snapshots to the server and maintains the persistent link connection that
// carries commands back down.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/log"
)

// excludedInterfacePrefixes are never reported as IP connections: docker
// bridges and veth pairs are container-internal plumbing, not LAN links a
// net-graph edge should ever route through.
var excludedInterfacePrefixes = []string{"docker", "veth"}

// StatusPublisher periodically collects this host's network view and POSTs
// it to the server's machine-status endpoint.
type StatusPublisher struct {
	Hostname   domain.Hostname
	Token      string
	ServerAddr string // base URL, e.g. "http://spark.example.com:8080"
	Interval   time.Duration

	httpClient *http.Client
}

// NewStatusPublisher constructs a publisher with a bounded HTTP client; the
// default Interval matches the spec's 60s cadence if left zero.
func NewStatusPublisher(hostname domain.Hostname, token, serverAddr string, interval time.Duration) *StatusPublisher {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &StatusPublisher{
		Hostname:   hostname,
		Token:      token,
		ServerAddr: serverAddr,
		Interval:   interval,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run posts a status snapshot every Interval until ctx is cancelled.
// Transient errors are logged and the loop tries again on the next tick, per
// the no-backoff-tightening policy: a single bad tick isn't worth escalating.
func (p *StatusPublisher) Run(ctx context.Context) error {
	logger := log.WithComponent("status-publisher")
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.publishOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to publish machine status")
			} else {
				logger.Debug().Msg("machine status published")
			}
		}
	}
}

func (p *StatusPublisher) publishOnce(ctx context.Context) error {
	status, err := CollectStatus(ctx, p.Hostname)
	if err != nil {
		return fmt.Errorf("agent: collect status: %w", err)
	}
	return p.post(ctx, status)
}

// post sends an already-collected status snapshot, split out from
// publishOnce so tests can exercise the HTTP leg without shelling out for
// network facts.
func (p *StatusPublisher) post(ctx context.Context, status domain.MachineStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("agent: marshal status: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.ServerAddr, "/")+"/machine/status", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("agent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent: post status: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agent: post status: server returned %s", resp.Status)
	}
	return nil
}

// CollectStatus gathers this host's current network view: its interfaces'
// IP connections and its internet-facing address.
func CollectStatus(ctx context.Context, hostname domain.Hostname) (domain.MachineStatus, error) {
	conns, err := collectIPConnections()
	if err != nil {
		return domain.MachineStatus{}, err
	}

	externalIP, err := externalIP(ctx)
	if err != nil {
		return domain.MachineStatus{}, err
	}

	return domain.MachineStatus{
		Hostname:      hostname,
		IPConnections: conns,
		ExternalIP:    externalIP,
		LastHeartbeat: time.Now(),
	}, nil
}

// collectIPConnections enumerates every up, non-loopback, non-container
// interface and pairs its address with the host's default gateway.
func collectIPConnections() ([]domain.IPConnection, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("agent: list interfaces: %w", err)
	}

	gatewayIP, gatewayMAC := defaultGateway()

	var out []domain.IPConnection
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if hasExcludedPrefix(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip := addrFromNet(addr)
			if ip == nil {
				continue
			}
			conn := domain.IPConnection{LocalIP: ip, GatewayIP: gatewayIP}
			if gatewayMAC != nil {
				conn.GatewayMAC = gatewayMAC
			}
			out = append(out, conn)
		}
	}
	return out, nil
}

func hasExcludedPrefix(name string) bool {
	for _, prefix := range excludedInterfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func addrFromNet(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}

// defaultGateway shells out to the platform's route and neighbor tables; a
// failure here is non-fatal (agents behind exotic routing still publish
// their addresses, just without a gateway association).
func defaultGateway() (net.IP, *domain.MacAddr) {
	out, err := exec.Command("sh", "-c", "ip route | grep default | awk '{print $3}'").Output()
	if err != nil {
		return nil, nil
	}
	ipStr := strings.TrimSpace(string(out))
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, nil
	}

	neigh, err := exec.Command("sh", "-c", fmt.Sprintf("ip neigh | grep '%s ' | awk '{ print $5 }'", ipStr)).Output()
	if err != nil {
		return ip, nil
	}
	macStr := strings.TrimSpace(string(neigh))
	if macStr == "" {
		return ip, nil
	}
	mac, err := domain.ParseMacAddr(macStr)
	if err != nil {
		return ip, nil
	}
	return ip, &mac
}

// externalIP prefers a DNS-based lookup via dig (a single UDP round trip)
// and falls back to an HTTP echo service when dig isn't installed.
func externalIP(ctx context.Context) (net.IP, error) {
	if ip, err := externalIPViaDig(ctx); err == nil {
		return ip, nil
	}
	return externalIPViaHTTP(ctx)
}

func externalIPViaDig(ctx context.Context) (net.IP, error) {
	cmd := exec.CommandContext(ctx, "dig", "+short", "myip.opendns.com", "@resolver1.opendns.com")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("agent: dig: %w", err)
	}
	ip := net.ParseIP(strings.TrimSpace(string(out)))
	if ip == nil {
		return nil, fmt.Errorf("agent: dig returned unparseable output %q", string(out))
	}
	return ip, nil
}

func externalIPViaHTTP(ctx context.Context) (net.IP, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://ifconfig.me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent: ifconfig.me: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil {
		return nil, fmt.Errorf("agent: ifconfig.me returned unparseable output %q", string(body))
	}
	return ip, nil
}
