// Package batch выполняет N независимых операций с ограниченной конкурентностью.
// Worker pool размером min(concurrency, len(items)); каждый worker забирает
// следующий незанятый индекс через общий atomic-курсор до исчерпания
// или отмены контекста.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Outcome результат одной операции батча.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Run выполняет fn для каждого элемента items с не более чем concurrency
// одновременными вызовами. Возвращаемый slice сохраняет порядок items.
//
// При отмене контекста (до старта или в процессе) все незавершенные слоты
// заполняются ошибкой контекста — слотов с нулевым Outcome не остается.
// Частичные сбои не прерывают соседние операции.
func Run[T, R any](ctx context.Context, concurrency int, items []T, fn func(ctx context.Context, item T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	var next atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(next.Add(1)) - 1
				if idx >= len(items) {
					return
				}
				// Отмена проверяется на границе итерации: уже начатая
				// операция завершается целиком
				if err := ctx.Err(); err != nil {
					outcomes[idx] = Outcome[R]{Err: err}
					continue
				}
				value, err := fn(ctx, items[idx])
				outcomes[idx] = Outcome[R]{Value: value, Err: err}
			}
		}()
	}

	wg.Wait()
	return outcomes
}

// FirstError возвращает первую ошибку из результатов или nil.
func FirstError[R any](outcomes []Outcome[R]) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
