// Package notify — широковещательные уведомления об измененных ресурсах
// для подписок /sync/subscribe-vnext. Broadcaster не несет полезной нагрузки:
// подписчик получает только имена затронутых ресурсов и сам тянет
// изменения через pull.
package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Broadcaster раздает касания ресурсов активным подпискам.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewBroadcaster создает пустой broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscription — одна подписка. Копит затронутые ресурсы между чтениями,
// чтобы медленный подписчик получал объединенный набор, а не поток
// отдельных событий.
type Subscription struct {
	b       *Broadcaster
	signal  chan struct{}
	mu      sync.Mutex
	touched map[string]struct{}
}

// Publish отмечает ресурсы измененными для всех активных подписок.
func (b *Broadcaster) Publish(resources ...string) {
	if len(resources) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		sub.add(resources)
	}
}

// Subscribe регистрирует новую подписку. Вызывающий обязан вызвать Close.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		b:       b,
		signal:  make(chan struct{}, 1),
		touched: make(map[string]struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Len возвращает число активных подписок.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *Subscription) add(resources []string) {
	s.mu.Lock()
	for _, r := range resources {
		s.touched[r] = struct{}{}
	}
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Wait блокируется до первого касания, но не дольше max.
// Возвращает отсортированный набор затронутых ресурсов и очищает его;
// nil без ошибки означает, что за max ничего не менялось.
func (s *Subscription) Wait(ctx context.Context, max time.Duration) ([]string, error) {
	if resources := s.drain(); len(resources) > 0 {
		return resources, nil
	}

	timer := time.NewTimer(max)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return s.drain(), nil
	case <-s.signal:
		return s.drain(), nil
	}
}

func (s *Subscription) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.touched) == 0 {
		return nil
	}
	resources := make([]string, 0, len(s.touched))
	for r := range s.touched {
		resources = append(resources, r)
	}
	s.touched = make(map[string]struct{})
	sort.Strings(resources)
	return resources
}

// Close снимает подписку с broadcaster.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()
}
