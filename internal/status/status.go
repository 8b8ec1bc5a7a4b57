// Package status рассылает события состояния соединения всем подписчикам:
// CONNECTED, DISCONNECTED и PROTOCOL_ERROR с подробностями. Это широковещание,
// а не колбэк один-к-одному: подписчиков может быть сколько угодно.
package status

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Kind uint8

const (
	Connected Kind = iota + 1
	Disconnected
	ProtocolError
)

func (k Kind) String() string {
	switch k {
	case Connected:
		return "CONNECTED"
	case Disconnected:
		return "DISCONNECTED"
	case ProtocolError:
		return "PROTOCOL_ERROR"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Event: одно уведомление. Err заполнен только для ProtocolError.
type Event struct {
	Kind Kind
	Err  error
	Time time.Time
}

func (e Event) String() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

type subscriber struct {
	id uint64
	fn func(Event)
	ch chan Event
}

// Notifier безопасен для конкурентного использования.
type Notifier struct {
	log *slog.Logger

	mu     sync.RWMutex
	subs   []*subscriber
	nextID uint64
	now    func() time.Time
}

func NewNotifier(log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{log: log, now: time.Now}
}

// Subscribe регистрирует синхронный обработчик. Вызывается в контексте
// публикации, поэтому долго блокировать нельзя. Возвращает отписку.
func (n *Notifier) Subscribe(fn func(Event)) (unsubscribe func()) {
	return n.add(&subscriber{fn: fn})
}

// Chan подписывается через буферизованный канал. Если буфер полон, событие
// для этого подписчика теряется. Отписка закрывает канал.
func (n *Notifier) Chan(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	s := &subscriber{ch: make(chan Event, buf)}
	return s.ch, n.add(s)
}

func (n *Notifier) add(s *subscriber) func() {
	n.mu.Lock()
	n.nextID++
	s.id = n.nextID
	n.subs = append(n.subs, s)
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(s.id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id != id {
			continue
		}
		n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
		if s.ch != nil {
			close(s.ch)
		}
		return
	}
}

func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Publish рассылает событие. Паника подписчика логируется и дальше не идёт.
func (n *Notifier) Publish(kind Kind, err error) Event {
	ev := Event{Kind: kind, Err: err, Time: n.now()}

	n.mu.RLock()
	subs := make([]*subscriber, len(n.subs))
	copy(subs, n.subs)
	n.mu.RUnlock()

	for _, s := range subs {
		if s.ch != nil {
			n.deliverChan(s, ev)
			continue
		}
		n.deliverFunc(s, ev)
	}
	return ev
}

func (n *Notifier) deliverChan(s *subscriber, ev Event) {
	// канал мог закрыться отпиской между копированием и отправкой
	n.mu.RLock()
	defer n.mu.RUnlock()
	if !n.hasLocked(s.id) {
		return
	}
	select {
	case s.ch <- ev:
	default:
		n.log.Warn("status subscriber is full, event dropped", "event", ev.Kind.String())
	}
}

func (n *Notifier) hasLocked(id uint64) bool {
	for _, s := range n.subs {
		if s.id == id {
			return true
		}
	}
	return false
}

func (n *Notifier) deliverFunc(s *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("status subscriber panicked", "event", ev.Kind.String(), "panic", r)
		}
	}()
	s.fn(ev)
}
