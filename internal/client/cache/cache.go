// Package cache реализует оптимистичный клиентский кэш записей.
// Кэш эксклюзивно владеет in-memory map; остальные компоненты читают
// snapshot-копии и подают дельты через Apply, не мутируя map напрямую.
package cache

import (
	"log/slog"
	"sync"

	"github.com/driftsync/driftsync/internal/models"
)

// Store потокобезопасный кэш записей, сгруппированных по ресурсу.
// Записи клонируются на входе и выходе (copy-on-write), поэтому
// значения, выданные наружу, никогда не деформируют внутреннее состояние.
type Store struct {
	records map[string]map[string]*models.Record
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewStore создает пустой кэш.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		records: make(map[string]map[string]*models.Record),
		logger:  logger,
	}
}

// Get возвращает клон записи из кэша.
func (s *Store) Get(resource, id string) (*models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID, ok := s.records[resource]
	if !ok {
		return nil, false
	}
	rec, ok := byID[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// List возвращает клоны всех записей ресурса.
func (s *Store) List(resource string) []*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.records[resource]
	out := make([]*models.Record, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec.Clone())
	}
	return out
}

// Len возвращает количество записей ресурса.
func (s *Store) Len(resource string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[resource])
}

// Apply применяет батч дельт к кэшу и возвращает дельты, которые реально
// что-то изменили. Дельта, не меняющая состояние (идентичное значение,
// либо before и after оба nil), элидируется — это поддерживает
// reference-stability оптимизации выше по стеку.
//
// Применение одной дельты атомарно: либо запись целиком заменяется/удаляется,
// либо не трогается вовсе.
func (s *Store) Apply(changes []models.StoreChange) []models.StoreChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := make([]models.StoreChange, 0, len(changes))
	for _, change := range changes {
		if change.IsNoop() {
			continue
		}

		byID, ok := s.records[change.Resource]
		if !ok {
			byID = make(map[string]*models.Record)
			s.records[change.Resource] = byID
		}

		current := byID[change.ID]
		if change.After == nil {
			if current == nil {
				// Удаление отсутствующей записи — no-op
				continue
			}
			delete(byID, change.ID)
		} else {
			if current != nil && current.Equal(change.After) {
				// Значение не меняется — элидируем
				continue
			}
			byID[change.ID] = change.After.Clone()
		}
		applied = append(applied, change)
	}

	if len(applied) > 0 {
		s.logger.Debug("cache batch applied",
			"requested", len(changes),
			"applied", len(applied))
	}
	return applied
}

// Rollback применяет инверсию ранее примененных дельт.
func (s *Store) Rollback(applied []models.StoreChange) []models.StoreChange {
	return s.Apply(models.InvertChanges(applied))
}

// Snapshot возвращает глубокую копию всех записей ресурса по id.
// Используется в тестах и при локальном коммите.
func (s *Store) Snapshot(resource string) map[string]*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.records[resource]
	out := make(map[string]*models.Record, len(byID))
	for id, rec := range byID {
		out[id] = rec.Clone()
	}
	return out
}

// Clear удаляет все записи. Используется в тестах и при полном re-sync.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]map[string]*models.Record)
}
