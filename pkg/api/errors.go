package api

// ErrorKind классификация ошибки на проводе.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindLimits     ErrorKind = "limits"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindAdapter    ErrorKind = "adapter"
	KindInternal   ErrorKind = "internal"
)

// Error codes, используемые в wire envelope.
const (
	CodeValidation        = "VALIDATION"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeConflict          = "CONFLICT"
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicateID       = "DUPLICATE_ID"
	CodeProtocolViolation = "PROTOCOL_VIOLATION"
	CodeInternal          = "INTERNAL"
)

// Error — единый error envelope протокола.
// Details несет структурированный контекст (например, current_version при конфликте).
type Error struct {
	Details map[string]any `json:"details,omitempty"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Kind    ErrorKind      `json:"kind"`
}

// HTTPStatus возвращает HTTP статус, производный от кода ошибки.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return 422
	case CodeUnauthorized:
		return 401
	case CodeRateLimited:
		return 429
	case CodeConflict, CodeDuplicateID:
		return 409
	case CodeNotFound:
		return 404
	default:
		return 500
	}
}
