package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runList(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: driftsync list <resource>")
	}

	resource := args[0]
	records := c.data.List(resource)

	c.io.Printf("=== %s (%d) ===\n", resource, len(records))
	if len(records) == 0 {
		c.io.Println("No records. Run 'driftsync sync' to pull server state.")
		return nil
	}

	for _, rec := range records {
		title := ""
		if t, ok := rec.Fields["title"].(string); ok {
			title = t
		} else if n, ok := rec.Fields["name"].(string); ok {
			title = n
		}
		c.io.Printf("  %s  v%d  %s\n", rec.ID, rec.Version, title)
	}
	return nil
}
