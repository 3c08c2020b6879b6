// Package queue реализует offline-очередь записей с коалесцированием
// операций по (resource, id). Очередь FIFO, персистентна (bbolt),
// ограничена по емкости с вытеснением самых старых операций.
package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/pkg/api"
)

var bucketQueue = []byte("queue")

const (
	// DefaultCapacity максимальное количество операций в очереди
	DefaultCapacity = 1000
	// DefaultChunkSize максимальное количество операций в одном push
	DefaultChunkSize = 200
)

// Options конфигурация очереди.
type Options struct {
	// OnEvict вызывается при вытеснении операции по переполнению.
	// Вытеснение никогда не происходит молча.
	OnEvict func(op api.QueuedOp)

	// OnDrop вызывается перед удалением операции, отклоненной сервером
	// или отброшенной из-за не-сетевой ошибки replay
	OnDrop func(op api.QueuedOp, reason error)

	// IsNetwork классифицирует ошибку push как сетевую.
	// Сетевые ошибки прерывают весь replay-проход, очередь сохраняется.
	IsNetwork func(err error) bool

	Logger    *slog.Logger
	Capacity  int
	ChunkSize int
}

// Queue персистентная offline-очередь одного клиента.
type Queue struct {
	db     *bbolt.DB
	logger *slog.Logger
	opts   Options
	ops    []api.QueuedOp
	mu     sync.Mutex
}

// New создает очередь поверх открытой bbolt базы и загружает
// сохраненные операции.
func New(db *bbolt.DB, opts Options) (*Queue, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IsNetwork == nil {
		// Без классификатора любой отказ считается сетевым:
		// очередь сохраняется для следующей попытки
		opts.IsNetwork = func(error) bool { return true }
	}

	q := &Queue{db: db, logger: opts.Logger, opts: opts}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketQueue)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create queue bucket: %w", err)
	}

	if err := q.load(); err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	return q, nil
}

// Len возвращает количество операций в очереди.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Ops возвращает snapshot очереди в порядке FIFO.
func (q *Queue) Ops() []api.QueuedOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]api.QueuedOp, len(q.ops))
	copy(out, q.ops)
	return out
}

// Enqueue добавляет операцию, коалесцируя ее с уже стоящей в очереди
// операцией той же (resource, id). Порядок операций между разными
// записями никогда не переупорядочивается.
func (q *Queue) Enqueue(ctx context.Context, op api.QueuedOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if op.IdempotencyKey == "" {
		return fmt.Errorf("queued op requires an idempotency key")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.coalesce(op) {
		return q.persist()
	}

	q.ops = append(q.ops, op)

	// FIFO-вытеснение при переполнении, с обязательным уведомлением
	for len(q.ops) > q.opts.Capacity {
		evicted := q.ops[0]
		q.ops = q.ops[1:]
		q.logger.Warn("queue capacity exceeded, evicting oldest op",
			"resource", evicted.Resource,
			"id", evicted.ID,
			"kind", evicted.Kind)
		if q.opts.OnEvict != nil {
			q.opts.OnEvict(evicted)
		}
	}

	return q.persist()
}

// coalesce пытается слить op с существующей операцией той же записи.
// Возвращает true, если очередь уже изменена (включая полную отмену пары).
func (q *Queue) coalesce(op api.QueuedOp) bool {
	if op.ID == "" {
		return false
	}

	idx := -1
	for i := len(q.ops) - 1; i >= 0; i-- {
		if q.ops[i].Resource == op.Resource && q.ops[i].ID == op.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	existing := &q.ops[idx]
	switch {
	case existing.Kind == api.QueuedCreate && op.Kind == api.QueuedPatch:
		// Патч поверх неподтвержденного create: применяем патч к данным
		// create на месте, остается единственный create
		existing.Data = models.ApplyPatches(existing.Data, models.PatchesFromAPI(op.Patches))
		return true

	case existing.Kind == api.QueuedCreate && op.Kind == api.QueuedDelete:
		// Запись никогда не существовала на сервере: пара отменяется целиком
		q.ops = append(q.ops[:idx], q.ops[idx+1:]...)
		q.logger.Debug("create+delete cancelled", "resource", op.Resource, "id", op.ID)
		return true

	case existing.Kind == api.QueuedPatch && op.Kind == api.QueuedPatch:
		// Конкатенация патчей, base version остается самой ранней
		existing.Patches = append(existing.Patches, op.Patches...)
		return true

	case existing.Kind == api.QueuedPatch && op.Kind == api.QueuedDelete:
		// Delete побеждает
		q.ops[idx] = op
		return true

	case existing.Kind == api.QueuedDelete && op.Kind == api.QueuedCreate:
		// Пересоздание
		q.ops[idx] = op
		return true
	}

	return false
}

// Remove удаляет операции с указанными idempotency-ключами.
func (q *Queue) Remove(keys []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(keys)
	return q.persist()
}

func (q *Queue) removeLocked(keys []string) {
	if len(keys) == 0 {
		return
	}
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	kept := q.ops[:0]
	for _, op := range q.ops {
		if _, drop := keySet[op.IdempotencyKey]; !drop {
			kept = append(kept, op)
		}
	}
	q.ops = kept
}

// Clear очищает очередь. Используется в тестах.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = nil
	return q.persist()
}

// persist перезаписывает bucket текущим содержимым очереди.
// Вызывается под q.mu.
func (q *Queue) persist() error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketQueue); err != nil {
			return fmt.Errorf("failed to reset queue bucket: %w", err)
		}
		bucket, err := tx.CreateBucket(bucketQueue)
		if err != nil {
			return fmt.Errorf("failed to recreate queue bucket: %w", err)
		}
		for i, op := range q.ops {
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, uint64(i))
			data, err := json.Marshal(op)
			if err != nil {
				return fmt.Errorf("failed to marshal queued op: %w", err)
			}
			if err := bucket.Put(key, data); err != nil {
				return fmt.Errorf("failed to persist queued op: %w", err)
			}
		}
		return nil
	})
}

// load читает сохраненную очередь из bucket.
func (q *Queue) load() error {
	return q.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var op api.QueuedOp
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal queued op: %w", err)
			}
			q.ops = append(q.ops, op)
			return nil
		})
	})
}
