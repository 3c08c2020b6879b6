package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftsync/driftsync/internal/client/auth"
)

func (c *Cli) runLogin(ctx context.Context) error {
	if err := c.session.Login(ctx); err != nil {
		if errors.Is(err, auth.ErrNotRegistered) {
			return fmt.Errorf("device is not registered. Run 'driftsync register' first")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	c.io.Println("Access token issued.")
	return nil
}
