package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: driftsync delete <resource> <id> [--force]")
	}

	resource, id := args[0], args[1]
	force := false
	for _, arg := range args[2:] {
		if arg == "--force" {
			force = true
		}
	}

	if err := c.data.Delete(ctx, resource, id, force); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if force {
		c.io.Printf("Record %s/%s permanently deleted.\n", resource, id)
	} else {
		c.io.Printf("Record %s/%s deleted.\n", resource, id)
	}
	return nil
}
