package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
)

// MemoryTools exposes the shared key/value memory. Reads are by exact key;
// discovery goes through explicit prefix enumeration rather than fuzzy search.
func MemoryTools(store *storage.Store) []Definition {
	return []Definition{
		{
			Spec: anthropic.Tool{
				Name:        "memory_set",
				Description: "Store a value under a key in shared memory. Visible to all bots. Use slash-separated keys like user/preferences/currency.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"key":   strProp("Exact key to write."),
					"value": strProp("Value to store. Overwrites any previous value."),
				}, "key", "value"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				key, err := requireString(input, "key")
				if err != nil {
					return "", err
				}
				value, ok := input["value"].(string)
				if !ok {
					return "", fmt.Errorf("value is required")
				}
				if err := store.SetMemory(key, value, caller.Bot); err != nil {
					return "", fmt.Errorf("storing memory: %w", err)
				}
				return fmt.Sprintf("Stored %s", key), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "memory_get",
				Description: "Read the value stored under an exact key. Use memory_list to discover keys.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"key": strProp("Exact key to read."),
				}, "key"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				key, err := requireString(input, "key")
				if err != nil {
					return "", err
				}
				entry, err := store.GetMemory(key)
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Sprintf("No value stored under %s.", key), nil
				}
				if err != nil {
					return "", fmt.Errorf("reading memory: %w", err)
				}
				return entry.Value, nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "memory_list",
				Description: "List memory keys under a prefix, with their values. Empty prefix lists everything.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"prefix": strProp("Key prefix, e.g. user/preferences/."),
				}),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				prefix := stringArg(input, "prefix")
				entries, err := store.ListMemory(prefix)
				if err != nil {
					return "", fmt.Errorf("listing memory: %w", err)
				}
				if len(entries) == 0 {
					if prefix == "" {
						return "Memory is empty.", nil
					}
					return fmt.Sprintf("No keys under %s.", prefix), nil
				}
				var b strings.Builder
				for _, e := range entries {
					fmt.Fprintf(&b, "%s = %s\n", e.Key, e.Value)
				}
				return b.String(), nil
			},
		},
	}
}
