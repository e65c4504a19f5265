// Package pubsub хранит подписки соединений на события сущностей
// и рассылает события подписчикам.
package pubsub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/bunker/internal/metrics"
)

var ErrUnknownConn = errors.New("connection is not registered")

type topic struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Conn
	dead bool
}

// connEntry обратный индекс: все подписки одного соединения
type connEntry struct {
	mu   sync.Mutex
	conn Conn
	subs map[Subscription]struct{}
}

// Registry подписки по сущностям. У каждой пары (сущность, событие) свой мьютекс,
// общий мьютекс держится только на время поиска в map.
type Registry struct {
	mu     sync.RWMutex
	topics map[Subscription]*topic

	connsMu sync.RWMutex
	conns   map[uuid.UUID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[Subscription]*topic),
		conns:  make(map[uuid.UUID]*connEntry),
	}
}

// Register добавляет соединение. Подписываться можно только зарегистрированным соединениям
func (r *Registry) Register(c Conn) {
	r.connsMu.Lock()
	defer r.connsMu.Unlock()

	if _, ok := r.conns[c.ConnID()]; ok {
		return
	}
	r.conns[c.ConnID()] = &connEntry{conn: c, subs: make(map[Subscription]struct{})}
	log.Debug().Str("module", "pubsub.registry").Str("conn", c.ConnID().String()).Msg("connection registered")
}

// Subscribe подписывает соединение на события events каждой из refs
func (r *Registry) Subscribe(c Conn, refs []Ref, events ...EventKind) error {
	e := r.entry(c.ConnID())
	if e == nil {
		return ErrUnknownConn
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// RemoveConnection мог успеть удалить запись
	if r.entry(c.ConnID()) != e {
		return ErrUnknownConn
	}

	for _, ref := range refs {
		for _, ev := range events {
			key := Subscription{Ref: ref, Event: ev}
			if _, ok := e.subs[key]; ok {
				continue
			}
			r.addToTopic(key, e.conn)
			e.subs[key] = struct{}{}
		}
	}
	return nil
}

// Unsubscribe снимает подписки. Отсутствующие подписки игнорируются
func (r *Registry) Unsubscribe(c Conn, refs []Ref, events ...EventKind) error {
	e := r.entry(c.ConnID())
	if e == nil {
		return ErrUnknownConn
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ref := range refs {
		for _, ev := range events {
			key := Subscription{Ref: ref, Event: ev}
			if _, ok := e.subs[key]; !ok {
				continue
			}
			delete(e.subs, key)
			r.removeFromTopic(key, c.ConnID())
		}
	}
	return nil
}

// RemoveConnection снимает все подписки соединения одной операцией
func (r *Registry) RemoveConnection(id uuid.UUID) {
	r.connsMu.Lock()
	e, ok := r.conns[id]
	delete(r.conns, id)
	r.connsMu.Unlock()

	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for key := range e.subs {
		r.removeFromTopic(key, id)
	}
	n := len(e.subs)
	e.subs = make(map[Subscription]struct{})

	log.Debug().Str("module", "pubsub.registry").Str("conn", id.String()).Int("subscriptions", n).Msg("connection removed")
}

// Subscribers возвращает соединения, подписанные на событие сущности
func (r *Registry) Subscribers(ref Ref, ev EventKind) []Conn {
	t := r.lookup(Subscription{Ref: ref, Event: ev})
	if t == nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Conn, 0, len(t.subs))
	for _, c := range t.subs {
		out = append(out, c)
	}
	return out
}

// Subscriptions возвращает текущие подписки соединения
func (r *Registry) Subscriptions(id uuid.UUID) []Subscription {
	e := r.entry(id)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Subscription, 0, len(e.subs))
	for key := range e.subs {
		out = append(out, key)
	}
	return out
}

func (r *Registry) IsSubscribed(id uuid.UUID, ref Ref, ev EventKind) bool {
	t := r.lookup(Subscription{Ref: ref, Event: ev})
	if t == nil {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.subs[id]
	return ok
}

// Publish доставляет событие каждому подписчику независимо и возвращает
// число успешных доставок. Ошибки доставки только логируются
func (r *Registry) Publish(ref Ref, ev EventKind, data interface{}) int {
	subs := r.Subscribers(ref, ev)
	if len(subs) == 0 {
		return 0
	}

	event := Event{Ref: ref, Kind: ev, Data: data}
	delivered := 0
	for _, c := range subs {
		if err := c.Deliver(event); err != nil {
			metrics.DeliveryFailures.Inc()
			log.Warn().Str("module", "pubsub.registry").
				Str("conn", c.ConnID().String()).
				Str("ref", ref.String()).
				Str("event", string(ev)).
				Err(err).Msg("delivery failed")
			continue
		}
		delivered++
	}
	metrics.Deliveries.WithLabelValues(string(ev)).Add(float64(delivered))
	return delivered
}

// Close снимает подписки всех соединений
func (r *Registry) Close() {
	r.connsMu.RLock()
	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.connsMu.RUnlock()

	for _, id := range ids {
		r.RemoveConnection(id)
	}
}

func (r *Registry) entry(id uuid.UUID) *connEntry {
	r.connsMu.RLock()
	defer r.connsMu.RUnlock()
	return r.conns[id]
}

func (r *Registry) lookup(key Subscription) *topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topics[key]
}

func (r *Registry) addToTopic(key Subscription, c Conn) {
	for {
		t := r.lookup(key)
		if t == nil {
			r.mu.Lock()
			if t = r.topics[key]; t == nil {
				t = &topic{subs: make(map[uuid.UUID]Conn)}
				r.topics[key] = t
			}
			r.mu.Unlock()
		}

		t.mu.Lock()
		if t.dead {
			// топик только что удален как пустой, берем новый
			t.mu.Unlock()
			continue
		}
		t.subs[c.ConnID()] = c
		t.mu.Unlock()
		return
	}
}

func (r *Registry) removeFromTopic(key Subscription, id uuid.UUID) {
	t := r.lookup(key)
	if t == nil {
		return
	}

	t.mu.Lock()
	delete(t.subs, id)
	empty := len(t.subs) == 0
	t.mu.Unlock()

	if !empty {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) == 0 && r.topics[key] == t {
		t.dead = true
		delete(r.topics, key)
	}
}
