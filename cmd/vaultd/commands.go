package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrel-app/vaultd/internal/config"
)

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vaultd configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all config keys and their current values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, info := range config.ShowAll(cfg) {
			fmt.Printf("%-32s %-40s %s\n", info.Key, info.Value, info.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- kv ---

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Inspect and edit the raw key-value cache",
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the cached value for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(context.Background(), "/kv/"+args[0])
		if err != nil {
			return err
		}

		var result struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		var pretty any
		if err := json.Unmarshal(result.Value, &pretty); err != nil {
			fmt.Println(string(result.Value))
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pretty)
	},
}

var kvSetCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Store a JSON value under a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]
		ttl, _ := cmd.Flags().GetInt("ttl")

		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("value is not valid JSON: %q", raw)
		}

		body := map[string]any{"value": json.RawMessage(raw)}
		if ttl > 0 {
			body["ttl_minutes"] = ttl
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(context.Background(), "/kv/"+key, body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Stored %s", key)
		return nil
	},
}

var kvDelCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(context.Background(), "/kv/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var kvKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List all cached keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(context.Background(), "/kv")
		if err != nil {
			return err
		}

		var result struct {
			Keys []string `json:"keys"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Keys) == 0 {
			fmt.Println("No keys cached.")
			return nil
		}
		for _, k := range result.Keys {
			fmt.Println(k)
		}
		return nil
	},
}

func init() {
	kvSetCmd.Flags().Int("ttl", 0, "expiry in minutes (0 = never)")

	kvCmd.AddCommand(kvGetCmd)
	kvCmd.AddCommand(kvSetCmd)
	kvCmd.AddCommand(kvDelCmd)
	kvCmd.AddCommand(kvKeysCmd)
}

// --- entries ---

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Inspect a user's cached entry list",
}

var entriesListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List cached entries for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(context.Background(), "/users/"+args[0]+"/entries")
		if err != nil {
			return err
		}

		var result struct {
			Cached  bool `json:"cached"`
			Entries []struct {
				ID        string `json:"id"`
				Type      string `json:"type"`
				Status    string `json:"status"`
				CreatedAt string `json:"created_at"`
			} `json:"entries"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if !result.Cached {
			fmt.Println("No entries cached for this user.")
			return nil
		}

		for _, e := range result.Entries {
			status := e.Status
			if status == "" {
				status = "confirmed"
			}
			fmt.Printf("%-38s %-8s %-12s %s\n", e.ID, e.Type, status, e.CreatedAt)
		}
		return nil
	},
}

var entriesAddCmd = &cobra.Command{
	Use:   "add <user-id> <json-entry>",
	Short: "Insert an optimistic entry (for testing flows)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, raw := args[0], args[1]

		var entry map[string]any
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return fmt.Errorf("invalid entry JSON: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(context.Background(), "/users/"+userID+"/entries", entry)
		if err != nil {
			return err
		}

		var result struct {
			Entry map[string]any `json:"entry"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added entry %v", result.Entry["id"])
		return nil
	},
}

var entriesRemoveCmd = &cobra.Command{
	Use:   "remove <user-id> <entry-id>",
	Short: "Remove an entry from a user's cached list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(context.Background(), "/users/"+args[0]+"/entries/"+args[1])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed entry %s", args[1])
		return nil
	},
}

func init() {
	entriesListCmd.Args = cobra.ExactArgs(1)

	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesAddCmd)
	entriesCmd.AddCommand(entriesRemoveCmd)
}
