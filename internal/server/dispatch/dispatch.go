// Package dispatch раскладывает батч write entries на группы с одинаковой
// формой (action + options) и применяет группы конкурентно. Результаты
// возвращаются в порядке исходного батча.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/driftsync/driftsync/internal/batch"
	"github.com/driftsync/driftsync/pkg/api"
)

// DefaultConcurrency предел одновременно применяемых групп.
const DefaultConcurrency = 8

// Applier применяет группу entries одного ресурса атомарно по элементу.
type Applier interface {
	ApplyGroup(ctx context.Context, resource string, entries []api.WriteEntry) []api.WriteResult
}

// Dispatcher группирует и применяет write-батчи.
type Dispatcher struct {
	applier     Applier
	logger      *slog.Logger
	concurrency int
}

// New создает dispatcher поверх applier.
func New(applier Applier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		applier:     applier,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
}

// group — срез entries одной формы с их позициями в исходном батче.
type group struct {
	indexes []int
	entries []api.WriteEntry
}

// Dispatch применяет все entries запроса и возвращает результаты в порядке
// Entries. Entries с одинаковой формой идут одной группой (и одной
// транзакцией), разные группы применяются конкурентно.
func (d *Dispatcher) Dispatch(ctx context.Context, req api.WriteRequest) []api.WriteResult {
	groups := groupEntries(req.Entries)
	d.logger.Debug("dispatching write batch",
		"resource", req.Resource,
		"entries", len(req.Entries),
		"groups", len(groups))

	outcomes := batch.Run(ctx, d.concurrency, groups, func(ctx context.Context, g group) ([]api.WriteResult, error) {
		return d.applier.ApplyGroup(ctx, req.Resource, g.entries), nil
	})

	results := make([]api.WriteResult, len(req.Entries))
	for gi, g := range groups {
		outcome := outcomes[gi]
		for i, idx := range g.indexes {
			if outcome.Err != nil {
				results[idx] = api.WriteResult{
					EntryID: g.entries[i].EntryID,
					Error: &api.Error{
						Code:    api.CodeInternal,
						Message: "write group was not applied",
						Kind:    api.KindInternal,
					},
				}
				continue
			}
			results[idx] = outcome.Value[i]
		}
	}
	return results
}

// groupEntries разбивает entries на группы по fingerprint (action + options),
// сохраняя относительный порядок внутри группы.
func groupEntries(entries []api.WriteEntry) []group {
	var groups []group
	byKey := make(map[string]int)

	for i, entry := range entries {
		key := fingerprint(entry)
		gi, ok := byKey[key]
		if !ok {
			gi = len(groups)
			byKey[key] = gi
			groups = append(groups, group{})
		}
		groups[gi].indexes = append(groups[gi].indexes, i)
		groups[gi].entries = append(groups[gi].entries, entry)
	}
	return groups
}

func fingerprint(entry api.WriteEntry) string {
	if entry.Options == nil {
		return entry.Action
	}
	// Options детерминированно сериализуются: одинаковые опции дают
	// одинаковый ключ группы
	raw, err := json.Marshal(entry.Options)
	if err != nil {
		return entry.Action + "|" + entry.EntryID
	}
	return entry.Action + "|" + string(raw)
}
