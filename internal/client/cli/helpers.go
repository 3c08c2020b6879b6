package cli

import (
	"encoding/json"
	"fmt"

	"github.com/driftsync/driftsync/internal/models"
)

// parseFields разбирает JSON-объект аргумента команды в поля записи.
func parseFields(arg string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(arg), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON fields: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("fields must be a non-empty JSON object")
	}
	return fields, nil
}

// printRecord печатает запись в человекочитаемом виде.
func (c *Cli) printRecord(rec *models.Record) {
	c.io.Printf("ID:      %s\n", rec.ID)
	c.io.Printf("Version: %d\n", rec.Version)
	if rec.Deleted {
		c.io.Println("Deleted: true")
	}
	if !rec.UpdatedAt.IsZero() {
		c.io.Printf("Updated: %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	data, err := json.MarshalIndent(rec.Fields, "", "  ")
	if err != nil {
		c.io.Printf("Fields:  %v\n", rec.Fields)
		return
	}
	c.io.Printf("Fields:  %s\n", data)
}
