package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftsync/driftsync/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== DriftSync Status ===")

	deviceID, err := c.session.DeviceID(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotRegistered) {
			c.io.Println("Device:  not registered")
			return nil
		}
		return fmt.Errorf("failed to read device status: %w", err)
	}

	c.io.Printf("Device:  %s\n", deviceID)
	c.io.Printf("Pending: %d queued operations\n", c.data.Pending())
	return nil
}
