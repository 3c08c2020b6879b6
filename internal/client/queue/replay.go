package queue

import (
	"context"
	"fmt"

	"github.com/driftsync/driftsync/pkg/api"
)

//go:generate moq -out pusher_mock.go . Pusher

// Pusher отправляет группу операций очереди на сервер.
type Pusher interface {
	Push(ctx context.Context, req api.PushRequest) (*api.PushResponse, error)
}

// ReplayReport итог одного replay-прохода.
type ReplayReport struct {
	ServerCursor *int64
	Acked        []api.AckedOp
	Rejected     []api.RejectedOp
	Dropped      int
}

// Replay проигрывает очередь группами не более ChunkSize операций.
//
// Подтвержденные и отклоненные сервером ключи удаляются из очереди
// (отклоненные — после уведомления через OnDrop). Сетевая ошибка прерывает
// весь проход с сохранением очереди; не-сетевая ошибка отбрасывает только
// операции текущей группы (после уведомления), чтобы очередь не застревала
// навсегда.
func (q *Queue) Replay(ctx context.Context, pusher Pusher, meta api.Meta) (*ReplayReport, error) {
	report := &ReplayReport{}

	for {
		chunk := q.nextChunk()
		if len(chunk) == 0 {
			return report, nil
		}

		resp, err := pusher.Push(ctx, api.PushRequest{Meta: meta, Ops: chunk})
		if err != nil {
			if q.opts.IsNetwork(err) {
				// Очередь сохраняется для следующей попытки
				q.logger.Warn("replay aborted on network failure",
					"pending", q.Len(),
					"error", err)
				return report, fmt.Errorf("replay aborted: %w", err)
			}

			// Не-сетевая ошибка: отбрасываем только операции этой группы
			dropped := make([]string, 0, len(chunk))
			for _, op := range chunk {
				if q.opts.OnDrop != nil {
					q.opts.OnDrop(op, err)
				}
				dropped = append(dropped, op.IdempotencyKey)
			}
			report.Dropped += len(dropped)
			if rmErr := q.Remove(dropped); rmErr != nil {
				return report, fmt.Errorf("failed to drop failed ops: %w", rmErr)
			}
			q.logger.Warn("replay chunk dropped on application failure",
				"dropped", len(dropped),
				"error", err)
			continue
		}

		report.Acked = append(report.Acked, resp.Acked...)
		report.Rejected = append(report.Rejected, resp.Rejected...)
		if resp.ServerCursor != nil {
			report.ServerCursor = resp.ServerCursor
		}

		acked := make([]string, 0, len(resp.Acked)+len(resp.Rejected))
		for _, a := range resp.Acked {
			acked = append(acked, a.IdempotencyKey)
		}
		for _, r := range resp.Rejected {
			if q.opts.OnDrop != nil {
				q.opts.OnDrop(q.findOp(r.IdempotencyKey), rejectionError(r))
			}
			acked = append(acked, r.IdempotencyKey)
		}
		if len(acked) == 0 {
			// Сервер не упомянул ни одного ключа группы: нарушение протокола,
			// дальнейший прогресс невозможен
			return report, fmt.Errorf("push response acknowledged no ops for chunk of %d", len(chunk))
		}
		if err := q.Remove(acked); err != nil {
			return report, fmt.Errorf("failed to remove acknowledged ops: %w", err)
		}
	}
}

// nextChunk возвращает первые ChunkSize операций очереди.
func (q *Queue) nextChunk() []api.QueuedOp {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.ops)
	if n > q.opts.ChunkSize {
		n = q.opts.ChunkSize
	}
	chunk := make([]api.QueuedOp, n)
	copy(chunk, q.ops[:n])
	return chunk
}

func (q *Queue) findOp(key string) api.QueuedOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range q.ops {
		if op.IdempotencyKey == key {
			return op
		}
	}
	return api.QueuedOp{IdempotencyKey: key}
}

func rejectionError(r api.RejectedOp) error {
	return fmt.Errorf("server rejected op: %s (%s)", r.Error.Message, r.Error.Code)
}
