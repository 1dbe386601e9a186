// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var connCmd = &cobra.Command{
	Use:   "conn",
	Short: "Inspect live persistent connections on a running server",
}

func init() {
	connCmd.AddCommand(connListCmd)
}

var connListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every hostname with a live persistent connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := resolveToken()
		if token == "" {
			return fmt.Errorf("admin token required: set --token or SPARKCTL_TOKEN")
		}

		var hostnames []string
		if err := adminGet(serverAddr+"/persistent-connections", token, &hostnames); err != nil {
			return err
		}
		if len(hostnames) == 0 {
			fmt.Println("(no connections)")
			return nil
		}
		for _, h := range hostnames {
			fmt.Println(h)
		}
		return nil
	},
}

// adminGet issues an authenticated GET and decodes the JSON body into out.
func adminGet(url, token string, out any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
