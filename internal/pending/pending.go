// Package pending хранит колбэки запросов, ожидающих ответа, по sequenceNumber.
// Таймаутов нет: зависший запрос убирается только сбросом (Reset) при
// отключении с отбрасыванием сообщений.
package pending

import "fmt"

// Registry не потокобезопасен: владелец сериализует доступ сам.
type Registry[C any] struct {
	cbs map[int64]C
}

func New[C any]() *Registry[C] {
	return &Registry[C]{cbs: make(map[int64]C)}
}

// Register запоминает колбэк для seq. Повторная регистрация того же seq
// ошибка программиста, поэтому паника.
func (r *Registry[C]) Register(seq int64, cb C) {
	if _, dup := r.cbs[seq]; dup {
		panic(fmt.Sprintf("pending: sequence number %d already registered", seq))
	}
	r.cbs[seq] = cb
}

// Resolve достаёт и удаляет колбэк. Для неизвестного seq (дубль, поздний
// ответ) возвращает false и ничего не делает.
func (r *Registry[C]) Resolve(seq int64) (C, bool) {
	cb, ok := r.cbs[seq]
	if ok {
		delete(r.cbs, seq)
	}
	return cb, ok
}

func (r *Registry[C]) Has(seq int64) bool {
	_, ok := r.cbs[seq]
	return ok
}

func (r *Registry[C]) Len() int { return len(r.cbs) }

// Reset бросает все ожидающие колбэки, не вызывая их.
func (r *Registry[C]) Reset() int {
	n := len(r.cbs)
	r.cbs = make(map[int64]C)
	return n
}
