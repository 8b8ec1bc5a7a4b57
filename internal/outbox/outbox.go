// Package outbox реализует очередь исходящих сообщений, накопленных пока соединения
// нет. Сообщения уходят строго в порядке постановки.
package outbox

import "iter"

// Queue: FIFO без блокировок; доступ сериализует владелец.
type Queue[T any] struct {
	items []T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Enqueue(v T) {
	q.items = append(q.items, v)
}

// PushFront возвращает элемент в голову очереди (запись не удалась).
func (q *Queue[T]) PushFront(v T) {
	q.items = append(q.items, v)
	copy(q.items[1:], q.items)
	q.items[0] = v
}

// Drain отдаёт элементы по одному, удаляя каждый в момент выдачи.
// Если цикл прервать, оставшиеся элементы остаются в очереди.
func (q *Queue[T]) Drain() iter.Seq[T] {
	return func(yield func(T) bool) {
		for len(q.items) > 0 {
			v := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			if !yield(v) {
				return
			}
		}
		q.items = nil
	}
}

func (q *Queue[T]) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}

func (q *Queue[T]) Len() int { return len(q.items) }
