package api

import "time"

// Record wire-представление записи.
type Record struct {
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
	Fields    map[string]any `json:"fields"`
	ID        string         `json:"id"`
	Version   int64          `json:"version"`
	Deleted   bool           `json:"deleted,omitempty"`
}

// Meta метаданные ops-запроса.
type Meta struct {
	TraceID      string `json:"trace_id,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	DeviceID     string `json:"device_id,omitempty"`
	ClientTimeMs int64  `json:"client_time_ms,omitempty"`
	V            int    `json:"v"`
}

// Op kinds.
const (
	OpKindQuery = "query"
	OpKindWrite = "write"
	OpKindPull  = "changes.pull"
)

// QueryOp точечный или списочный запрос по ресурсу.
// Ровно одно из ID/IDs/Filter должно быть заполнено.
type QueryOp struct {
	Filter   map[string]any `json:"filter,omitempty"`
	Resource string         `json:"resource"`
	ID       string         `json:"id,omitempty"`
	IDs      []string       `json:"ids,omitempty"`
	Limit    int            `json:"limit,omitempty"`
}

// PullOp запрос инкрементальных изменений change log.
type PullOp struct {
	Resources []string `json:"resources,omitempty"`
	Cursor    int64    `json:"cursor"`
	Limit     int      `json:"limit,omitempty"`
}

// Op один элемент ops-конверта. Kind определяет, какое из полей заполнено.
type Op struct {
	Query *QueryOp      `json:"query,omitempty"`
	Write *WriteRequest `json:"write,omitempty"`
	Pull  *PullOp       `json:"pull,omitempty"`
	OpID  string        `json:"op_id"`
	Kind  string        `json:"kind"`
}

// OpsRequest конверт POST /ops.
type OpsRequest struct {
	Meta Meta `json:"meta"`
	Ops  []Op `json:"ops"`
}

// QueryData результат query op.
type QueryData struct {
	Records []Record `json:"records"`
}

// PullData результат changes.pull op.
// NextCursor всегда имеет приоритет над курсором последнего изменения.
type PullData struct {
	Changes    []Change `json:"changes"`
	NextCursor int64    `json:"next_cursor"`
}

// OpResult результат одного op. Ровно одно из Query/Write/Pull/Error заполнено.
type OpResult struct {
	Query *QueryData     `json:"query,omitempty"`
	Write *WriteResponse `json:"write,omitempty"`
	Pull  *PullData      `json:"pull,omitempty"`
	Error *Error         `json:"error,omitempty"`
	OpID  string         `json:"op_id"`
	OK    bool           `json:"ok"`
}

// OpsResponse ответ POST /ops. Results сохраняет порядок ops запроса.
type OpsResponse struct {
	Results []OpResult `json:"results"`
}
