package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Saireddy1599/WatchTogether/internal/model"
)

var _ RoomStore = (*MemoryRoomRepo)(nil)

type memoryRoom struct {
	room     model.Room
	messages []model.Message
	touched  time.Time
}

// MemoryRoomRepo keeps rooms in process.  It is used when Redis is not
// configured and offers the same semantics within a single instance.
type MemoryRoomRepo struct {
	mu    sync.Mutex
	ttl   time.Duration
	rooms map[string]*memoryRoom
	subs  map[string]map[chan model.Playback]struct{}
	now   func() time.Time
}

func NewMemoryRoomRepo(ttl time.Duration) *MemoryRoomRepo {
	return &MemoryRoomRepo{
		ttl:   ttl,
		rooms: make(map[string]*memoryRoom),
		subs:  make(map[string]map[chan model.Playback]struct{}),
		now:   time.Now,
	}
}

func cloneRoom(r model.Room) *model.Room {
	r.Participants = append([]string(nil), r.Participants...)
	return &r
}

// lookup returns a live entry, dropping it when it has expired.  Callers
// hold mu.
func (m *MemoryRoomRepo) lookup(code string) (*memoryRoom, bool) {
	e, ok := m.rooms[code]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && m.now().Sub(e.touched) > m.ttl {
		delete(m.rooms, code)
		return nil, false
	}
	return e, true
}

func (m *MemoryRoomRepo) Create(_ context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(room.Code); ok {
		return ErrConflict
	}
	m.rooms[room.Code] = &memoryRoom{room: *cloneRoom(*room), touched: m.now()}
	return nil
}

func (m *MemoryRoomRepo) Get(_ context.Context, code string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(e.room), nil
}

func (m *MemoryRoomRepo) ListPublic(_ context.Context) ([]*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]*model.Room, 0)
	for code := range m.rooms {
		e, ok := m.lookup(code)
		if ok && e.room.IsPublic {
			rooms = append(rooms, cloneRoom(e.room))
		}
	}
	sortNewestFirst(rooms)
	return rooms, nil
}

func (m *MemoryRoomRepo) Update(_ context.Context, code string, fn func(*model.Room) error) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	room := cloneRoom(e.room)
	before := room.Playback()
	if err := fn(room); err != nil {
		return nil, err
	}
	if room.Empty() {
		delete(m.rooms, code)
		return nil, nil
	}
	e.room = *cloneRoom(*room)
	e.touched = m.now()
	if after := room.Playback(); after != before {
		for ch := range m.subs[code] {
			offerLatest(ch, after)
		}
	}
	return room, nil
}

func (m *MemoryRoomRepo) AddMessage(_ context.Context, msg model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(msg.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	e.messages = append(e.messages, msg)
	if n := len(e.messages); n > model.MaxMessages {
		e.messages = append([]model.Message(nil), e.messages[n-model.MaxMessages:]...)
	}
	e.touched = m.now()
	return nil
}

func (m *MemoryRoomRepo) Messages(_ context.Context, code string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(code)
	if !ok {
		return []model.Message{}, nil
	}
	return append([]model.Message{}, e.messages...), nil
}

func (m *MemoryRoomRepo) Subscribe(ctx context.Context, code string) (<-chan model.Playback, error) {
	ch := make(chan model.Playback, 1)
	m.mu.Lock()
	if m.subs[code] == nil {
		m.subs[code] = make(map[chan model.Playback]struct{})
	}
	m.subs[code][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[code], ch)
		if len(m.subs[code]) == 0 {
			delete(m.subs, code)
		}
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}
