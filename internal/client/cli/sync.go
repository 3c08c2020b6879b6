package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("Syncing...")

	report, err := c.engine.Replay(ctx)
	if err != nil {
		return fmt.Errorf("failed to replay offline queue: %w", err)
	}
	if len(report.Acked) > 0 || len(report.Rejected) > 0 {
		c.io.Printf("Queue replayed: %d acked, %d rejected\n", len(report.Acked), len(report.Rejected))
		for _, rejected := range report.Rejected {
			c.io.Printf("  rejected %s: %s\n", rejected.IdempotencyKey, rejected.Error.Message)
		}
	}

	if err := c.engine.PullOnce(ctx); err != nil {
		return fmt.Errorf("failed to pull changes: %w", err)
	}

	c.io.Println("Sync complete.")
	return nil
}

// runWatch синхронизирует в цикле до отмены контекста: подписка на
// server-push с fallback-опросом.
func (c *Cli) runWatch(ctx context.Context) error {
	c.io.Println("Watching for changes (Ctrl+C to stop)...")
	return c.engine.Run(ctx)
}
