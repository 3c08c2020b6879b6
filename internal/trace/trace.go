// Package trace выводит request id из trace id через счетчик последовательности
// на каждый trace. Registry — явный объект времени выполнения: создается один раз
// на процесс и передается по ссылке, без скрытого глобального состояния.
package trace

import (
	"container/list"
	"fmt"
	"sync"
)

// DefaultCapacity предельное количество одновременно отслеживаемых trace id.
const DefaultCapacity = 1024

type seqEntry struct {
	traceID string
	seq     int64
}

// Registry хранит счетчик последовательности на каждый trace id
// с LRU-вытеснением при достижении capacity.
type Registry struct {
	seqs     map[string]*list.Element
	order    *list.List
	capacity int
	mu       sync.Mutex
}

// NewRegistry создает registry с заданной ёмкостью.
// capacity <= 0 заменяется на DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		seqs:     make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// Next возвращает следующий request id для trace id в форме "<trace>.<n>".
// Счетчик монотонно растет в рамках жизни trace id в registry.
func (r *Registry) Next(traceID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.seqs[traceID]; ok {
		entry := elem.Value.(*seqEntry)
		entry.seq++
		r.order.MoveToFront(elem)
		return fmt.Sprintf("%s.%d", traceID, entry.seq)
	}

	// Вытесняем самый старый trace при переполнении
	if r.order.Len() >= r.capacity {
		oldest := r.order.Back()
		if oldest != nil {
			r.order.Remove(oldest)
			delete(r.seqs, oldest.Value.(*seqEntry).traceID)
		}
	}

	entry := &seqEntry{traceID: traceID, seq: 1}
	r.seqs[traceID] = r.order.PushFront(entry)
	return fmt.Sprintf("%s.%d", traceID, entry.seq)
}

// Len возвращает количество отслеживаемых trace id.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
