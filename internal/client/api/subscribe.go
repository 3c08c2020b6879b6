package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/driftsync/driftsync/pkg/api"
)

// Subscribe держит SSE-соединение GET /sync/subscribe-vnext и вызывает
// onEvent на каждое notify-событие. cursor и resources уходят в query:
// сервер шлет catch-up событие, если после cursor уже были изменения,
// и фильтрует notify по запрошенным ресурсам. Блокируется до обрыва
// потока или отмены контекста; переподключение — забота вызывающего.
func (c *Client) Subscribe(ctx context.Context, cursor int64, resources []string, onEvent func(api.NotifyEvent)) error {
	query := url.Values{}
	query.Set("cursor", strconv.FormatInt(cursor, 10))
	if len(resources) > 0 {
		query.Set("resources", strings.Join(resources, ","))
	}

	endpoint := c.baseURL + "/sync/subscribe-vnext?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create subscribe request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Отдельный транспорт без таймаута: поток живет до обрыва
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			// Пустая строка завершает событие
			if event == "notify" && data != "" {
				var notify api.NotifyEvent
				if err := json.Unmarshal([]byte(data), &notify); err == nil {
					onEvent(notify)
				}
			}
			event, data = "", ""

		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		default:
			// Комментарии (heartbeat) и retry-подсказки игнорируются
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{Err: err}
	}
	return nil
}
