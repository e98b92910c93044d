package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Saireddy1599/WatchTogether/internal/model"
)

// maxUpdateRetries bounds optimistic updates that keep losing WATCH races.
const maxUpdateRetries = 5

// RoomStore persists rooms, their chat and playback notifications.
type RoomStore interface {
	Create(ctx context.Context, room *model.Room) error
	Get(ctx context.Context, code string) (*model.Room, error)
	ListPublic(ctx context.Context) ([]*model.Room, error)
	// Update applies fn to the current room and saves the result.  A room
	// left without participants is deleted and Update returns nil, nil.
	// Errors returned by fn abort the update unchanged.
	Update(ctx context.Context, code string, fn func(*model.Room) error) (*model.Room, error)
	AddMessage(ctx context.Context, msg model.Message) error
	Messages(ctx context.Context, code string) ([]model.Message, error)
	// Subscribe streams playback changes of one room until ctx is done.
	Subscribe(ctx context.Context, code string) (<-chan model.Playback, error)
}

var _ RoomStore = (*RoomRepo)(nil)

const publicRoomsKey = "rooms:public"

// RoomRepo stores each room as JSON under room:<code>.
type RoomRepo struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRoomRepo(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RoomRepo {
	return &RoomRepo{rdb: rdb, ttl: ttl, log: log}
}

func roomKey(code string) string { return "room:" + code }
func messagesKey(code string) string { return "room:" + code + ":messages" }
func playbackChannel(code string) string { return "room:" + code + ":playback" }

func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	ok, err := r.rdb.SetNX(ctx, roomKey(room.Code), room, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	if room.IsPublic {
		if err := r.rdb.SAdd(ctx, publicRoomsKey, room.Code).Err(); err != nil {
			return fmt.Errorf("index public room: %w", err)
		}
	}
	return nil
}

func (r *RoomRepo) Get(ctx context.Context, code string) (*model.Room, error) {
	var room model.Room
	err := r.rdb.Get(ctx, roomKey(code)).Scan(&room)
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

// ListPublic returns public rooms, newest first.  Index entries whose room
// has expired are pruned.
func (r *RoomRepo) ListPublic(ctx context.Context) ([]*model.Room, error) {
	codes, err := r.rdb.SMembers(ctx, publicRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list public rooms: %w", err)
	}
	rooms := make([]*model.Room, 0, len(codes))
	if len(codes) == 0 {
		return rooms, nil
	}
	keys := make([]string, len(codes))
	for i, c := range codes {
		keys[i] = roomKey(c)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load public rooms: %w", err)
	}
	var stale []interface{}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, codes[i])
			continue
		}
		var room model.Room
		if err := room.UnmarshalBinary([]byte(s)); err != nil {
			r.log.Warn("skip undecodable room", "code", codes[i], "err", err)
			continue
		}
		rooms = append(rooms, &room)
	}
	if len(stale) > 0 {
		r.rdb.SRem(ctx, publicRoomsKey, stale...)
	}
	sortNewestFirst(rooms)
	return rooms, nil
}

func (r *RoomRepo) Update(ctx context.Context, code string, fn func(*model.Room) error) (*model.Room, error) {
	key := roomKey(code)
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		var (
			room    model.Room
			before  model.Playback
			deleted bool
		)
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			err := tx.Get(ctx, key).Scan(&room)
			if errors.Is(err, redis.Nil) {
				return ErrRoomNotFound
			}
			if err != nil {
				return err
			}
			before = room.Playback()
			if err := fn(&room); err != nil {
				return err
			}
			deleted = room.Empty()
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if deleted {
					pipe.Del(ctx, key, messagesKey(code))
					pipe.SRem(ctx, publicRoomsKey, code)
					return nil
				}
				pipe.Set(ctx, key, &room, r.ttl)
				pipe.Expire(ctx, messagesKey(code), r.ttl)
				if room.IsPublic {
					pipe.SAdd(ctx, publicRoomsKey, code)
				} else {
					pipe.SRem(ctx, publicRoomsKey, code)
				}
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if deleted {
			return nil, nil
		}
		if after := room.Playback(); after != before {
			r.publish(ctx, code, after)
		}
		return &room, nil
	}
	return nil, ErrConflict
}

func (r *RoomRepo) publish(ctx context.Context, code string, p model.Playback) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.rdb.Publish(ctx, playbackChannel(code), payload).Err(); err != nil {
		r.log.Warn("publish playback failed", "code", code, "err", err)
	}
}

func (r *RoomRepo) AddMessage(ctx context.Context, msg model.Message) error {
	key := messagesKey(msg.RoomCode)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, &msg)
		pipe.LTrim(ctx, key, -model.MaxMessages, -1)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// Messages returns the retained chat history, oldest first.
func (r *RoomRepo) Messages(ctx context.Context, code string) ([]model.Message, error) {
	raw, err := r.rdb.LRange(ctx, messagesKey(code), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]model.Message, 0, len(raw))
	for _, s := range raw {
		var m model.Message
		if err := m.UnmarshalBinary([]byte(s)); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *RoomRepo) Subscribe(ctx context.Context, code string) (<-chan model.Playback, error) {
	ps := r.rdb.Subscribe(ctx, playbackChannel(code))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe playback: %w", err)
	}
	out := make(chan model.Playback, 1)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var p model.Playback
				if err := json.Unmarshal([]byte(m.Payload), &p); err != nil {
					continue
				}
				offerLatest(out, p)
			}
		}
	}()
	return out, nil
}

// offerLatest replaces any undelivered value so slow readers only ever see
// the most recent state.
func offerLatest(ch chan model.Playback, p model.Playback) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func sortNewestFirst(rooms []*model.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
}
