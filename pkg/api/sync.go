package api

import "time"

// Queued op kinds (offline queue).
const (
	QueuedCreate = "create"
	QueuedPatch  = "patch"
	QueuedDelete = "delete"
)

// Patch wire-форма одной патч-операции (replace/remove по пути).
type Patch struct {
	Value any      `json:"value,omitempty"`
	Op    string   `json:"op"`
	Path  []string `json:"path"`
}

// QueuedOp одна запись offline-очереди на проводе.
// Data заполнен для kind=create, Patches — для kind=patch.
type QueuedOp struct {
	Data           map[string]any `json:"data,omitempty"`
	BaseVersion    *int64         `json:"base_version,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	Resource       string         `json:"resource"`
	Kind           string         `json:"kind"`
	ID             string         `json:"id,omitempty"`
	Patches        []Patch        `json:"patches,omitempty"`
	TimestampMs    int64          `json:"timestamp_ms"`
}

// PushRequest конверт POST /sync/push.
type PushRequest struct {
	Meta Meta       `json:"meta"`
	Ops  []QueuedOp `json:"ops"`
}

// AckedOp подтвержденная операция.
type AckedOp struct {
	IdempotencyKey string `json:"idempotency_key"`
	Resource       string `json:"resource"`
	ID             string `json:"id"`
	ServerVersion  int64  `json:"server_version"`
}

// RejectedOp отклоненная операция с контекстом конфликта, если он есть.
type RejectedOp struct {
	CurrentValue   map[string]any `json:"current_value,omitempty"`
	CurrentVersion *int64         `json:"current_version,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	Error          Error          `json:"error"`
}

// PushResponse ответ POST /sync/push.
// Клиент продвигает локальный курсор, только если ServerCursor строго больше
// последнего известного значения.
type PushResponse struct {
	ServerCursor *int64       `json:"server_cursor,omitempty"`
	Acked        []AckedOp    `json:"acked"`
	Rejected     []RejectedOp `json:"rejected"`
}

// Change одна запись change log на проводе.
type Change struct {
	ChangedAt     time.Time `json:"changed_at"`
	Resource      string    `json:"resource"`
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Cursor        int64     `json:"cursor"`
	ServerVersion int64     `json:"server_version"`
}

// NotifyEvent полезная нагрузка SSE события notify.
type NotifyEvent struct {
	Resources []string `json:"resources,omitempty"`
}
