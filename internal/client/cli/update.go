package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftsync/driftsync/internal/client/write"
)

func (c *Cli) runUpdate(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: driftsync update <resource> <id> <json>")
	}

	resource, id := args[0], args[1]
	fields, err := parseFields(args[2])
	if err != nil {
		return err
	}

	rec, err := c.data.Update(ctx, resource, id, fields)
	if err != nil {
		var conflict *write.ConflictError
		if errors.As(err, &conflict) {
			c.io.Println("Update rejected: the record changed on the server.")
			c.io.Printf("Server version: %d\n", conflict.CurrentVersion)
			c.io.Println("Run 'driftsync sync' and retry.")
			return err
		}
		if errors.Is(err, write.ErrMissingBase) {
			return fmt.Errorf("record not found locally: %s/%s (run 'driftsync sync' first)", resource, id)
		}
		return fmt.Errorf("failed to update record: %w", err)
	}

	c.io.Println("=== Record Updated ===")
	c.printRecord(rec)
	return nil
}
