package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/driftsync/driftsync/pkg/api"
)

// NetworkError — транспортная ошибка: запрос не достиг сервера либо ответ
// не был прочитан. Операции с такими ошибками безопасно ретраить.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetwork сообщает, является ли ошибка транспортной.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// StatusError — ответ сервера с не-2xx статусом. API заполнен, если тело
// несло error envelope протокола.
type StatusError struct {
	API    *api.Error
	Body   string
	Status int
}

func (e *StatusError) Error() string {
	if e.API != nil {
		return fmt.Sprintf("server error (%d) %s: %s", e.Status, e.API.Code, e.API.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Body)
}

func decodeStatusError(status int, body []byte) error {
	var envelope struct {
		Error *api.Error `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return &StatusError{Status: status, API: envelope.Error}
	}
	return &StatusError{Status: status, Body: string(body)}
}
