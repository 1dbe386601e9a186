// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/netgraph"
)

var routeUser string

func init() {
	routeCmd.Flags().StringVar(&routeUser, "user", "root", "remote user for each SSH hop")
}

var routeCmd = &cobra.Command{
	Use:   "route FROM TO",
	Short: "Print the chained ssh ProxyCommand argument list between two hostnames",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := resolveToken()
		if token == "" {
			return fmt.Errorf("admin token required: set --token or SPARKCTL_TOKEN")
		}

		src, err := domain.ParseHostname(args[0])
		if err != nil {
			return fmt.Errorf("invalid source hostname: %w", err)
		}
		dst, err := domain.ParseHostname(args[1])
		if err != nil {
			return fmt.Errorf("invalid destination hostname: %w", err)
		}

		var rows map[string]domain.MachineStatus
		if err := adminGet(serverAddr+"/machine/status", token, &rows); err != nil {
			return err
		}

		statuses := make(map[domain.Hostname]domain.MachineStatus, len(rows))
		for raw, status := range rows {
			hostname, err := domain.ParseHostname(raw)
			if err != nil {
				continue
			}
			statuses[hostname] = status
		}

		graph := netgraph.Build(statuses)
		path := graph.FindPath(src, dst)
		if len(path) == 0 {
			return fmt.Errorf("no route found from %s to %s", src, dst)
		}
		hops := graph.PathToHops(path)
		if hops == nil {
			return fmt.Errorf("route from %s to %s could not be resolved to reachable hops", src, dst)
		}

		fmt.Println(strings.Join(netgraph.ProxyArgs(hops, routeUser), " "))
		return nil
	},
}
