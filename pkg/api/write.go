package api

// WriteMeta метаданные одного write item.
// IdempotencyKey глобально уникален; повторная доставка того же ключа — no-op.
type WriteMeta struct {
	IdempotencyKey string `json:"idempotency_key"`
	ClientTimeMs   int64  `json:"client_time_ms"`
}

// WriteItem полезная нагрузка одной записи на проводе.
// BaseVersion используется update/delete (строгий CAS),
// ExpectedVersion — upsert в режиме cas. Оба nil — версия не проверяется.
type WriteItem struct {
	Value           map[string]any `json:"value,omitempty"`
	BaseVersion     *int64         `json:"base_version,omitempty"`
	ExpectedVersion *int64         `json:"expected_version,omitempty"`
	Deleted         *bool          `json:"deleted,omitempty"`
	ID              string         `json:"id"`
	Meta            WriteMeta      `json:"meta"`
}

// UpsertMode серверный режим upsert.
const (
	UpsertStrict = "strict"
	UpsertLoose  = "loose"
)

// WriteEntryOptions опции одного write entry.
type WriteEntryOptions struct {
	Returning  *bool    `json:"returning,omitempty"`
	Merge      *bool    `json:"merge,omitempty"`
	Fields     []string `json:"fields,omitempty"`
	UpsertMode string   `json:"upsert_mode,omitempty"`
}

// WriteEntry — скомпилированная запись на проводе.
// EntryID уникален в рамках батча и коррелирует запрос с ответом.
type WriteEntry struct {
	Options *WriteEntryOptions `json:"options,omitempty"`
	EntryID string             `json:"entry_id"`
	Action  string             `json:"action"`
	Item    WriteItem          `json:"item"`
}

// CurrentState текущее серверное состояние, прикладываемое к конфликту,
// чтобы клиент мог сделать rebase или показать diff.
type CurrentState struct {
	Value   map[string]any `json:"value,omitempty"`
	Version int64          `json:"version"`
}

// WriteResult результат применения одного entry на сервере.
type WriteResult struct {
	Data    *Record       `json:"data,omitempty"`
	Error   *Error        `json:"error,omitempty"`
	Current *CurrentState `json:"current,omitempty"`
	EntryID string        `json:"entry_id"`
	Version int64         `json:"version,omitempty"`
	OK      bool          `json:"ok"`
}

// WriteRequest батч записей для одного ресурса (handle).
type WriteRequest struct {
	Resource string       `json:"resource"`
	Entries  []WriteEntry `json:"entries"`
}

// Write statuses.
const (
	StatusConfirmed = "confirmed"
	StatusPartial   = "partial"
	StatusRejected  = "rejected"
	StatusEnqueued  = "enqueued"
)

// WriteResponse ответ на батч записей.
// Results сохраняет порядок entries запроса.
type WriteResponse struct {
	Status       string        `json:"status"`
	Results      []WriteResult `json:"results"`
	ServerCursor int64         `json:"server_cursor,omitempty"`
}
