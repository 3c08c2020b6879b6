package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runGet(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: driftsync get <resource> <id>")
	}

	rec, err := c.data.Get(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("record not found: %s/%s", args[0], args[1])
	}

	c.io.Println("=== Record ===")
	c.printRecord(rec)
	return nil
}
