package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runAdd(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: driftsync add <resource> <json>")
	}

	resource := args[0]
	fields, err := parseFields(args[1])
	if err != nil {
		return err
	}

	rec, err := c.data.Add(ctx, resource, "", fields)
	if err != nil {
		return fmt.Errorf("failed to add record: %w", err)
	}

	if rec == nil {
		c.io.Println("Record queued for sync.")
		return nil
	}

	c.io.Println("=== Record Created ===")
	c.printRecord(rec)
	if c.data.Pending() > 0 {
		c.io.Printf("(%d operations pending sync)\n", c.data.Pending())
	}
	return nil
}
