package models

import (
	"reflect"
	"time"
)

// Record представляет одну версионируемую запись (entity).
// Version монотонно возрастает ровно на 1 при каждой подтвержденной записи.
// ID и Version живут на уровне структуры и никогда не хранятся внутри Fields.
type Record struct {
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt time.Time      `json:"deleted_at,omitempty"`
	Fields    map[string]any `json:"fields"`
	ID        string         `json:"id"`
	Version   int64          `json:"version"`
	Deleted   bool           `json:"deleted"`
}

// Clone создает глубокую копию записи, включая вложенные map/slice в Fields.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Fields = CloneFields(r.Fields)
	return &clone
}

// Equal сравнивает две записи по значению.
// Используется для reference-preserving no-op elision в кэше.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ID != other.ID || r.Version != other.Version || r.Deleted != other.Deleted {
		return false
	}
	return reflect.DeepEqual(r.Fields, other.Fields)
}

// CloneFields делает глубокую копию набора полей записи.
func CloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneFields(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// StoreChange описывает дельту одной записи в кэше.
// After == nil означает удаление записи из кэша.
type StoreChange struct {
	Before   *Record
	After    *Record
	Resource string
	ID       string
}

// Invert возвращает обратную дельту: before и after меняются местами.
func (c StoreChange) Invert() StoreChange {
	return StoreChange{
		Before:   c.After,
		After:    c.Before,
		Resource: c.Resource,
		ID:       c.ID,
	}
}

// IsNoop сообщает, что применение дельты не изменит состояние кэша.
func (c StoreChange) IsNoop() bool {
	if c.Before == nil && c.After == nil {
		return true
	}
	return c.Before.Equal(c.After)
}

// InvertChanges строит rollback-батч для набора примененных дельт.
func InvertChanges(changes []StoreChange) []StoreChange {
	out := make([]StoreChange, len(changes))
	for i, c := range changes {
		out[i] = c.Invert()
	}
	return out
}

// ChangeKind тип изменения в server change log
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeDelete ChangeKind = "delete"
)

// Change представляет одну запись серверного change log.
// Cursor строго возрастает и никогда не переиспользуется.
type Change struct {
	ChangedAt     time.Time  `json:"changed_at"`
	Resource      string     `json:"resource"`
	ID            string     `json:"id"`
	Kind          ChangeKind `json:"kind"`
	Cursor        int64      `json:"cursor"`
	ServerVersion int64      `json:"server_version"`
}
