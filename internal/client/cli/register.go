package cli

import (
	"context"
	"fmt"
	"os"
)

func (c *Cli) runRegister(ctx context.Context, args []string) error {
	name := "device"
	if len(args) > 0 {
		name = args[0]
	} else if hostname, err := os.Hostname(); err == nil {
		name = hostname
	}

	creds, err := c.session.Register(ctx, name)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	c.io.Println("=== Device Registered ===")
	c.io.Printf("Device ID: %s\n", creds.DeviceID)
	c.io.Println("")
	c.io.Println("The device secret is stored in the local database.")
	c.io.Println("It is shown by the server exactly once and cannot be recovered.")
	return nil
}
