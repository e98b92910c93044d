package repository

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saireddy1599/WatchTogether/internal/model"
)

func newRedisRoomRepo(t *testing.T) (*RoomRepo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRoomRepo(rdb, time.Hour, slog.Default()), s
}

func stores(t *testing.T) map[string]RoomStore {
	redisRepo, _ := newRedisRoomRepo(t)
	return map[string]RoomStore{
		"redis":  redisRepo,
		"memory": NewMemoryRoomRepo(time.Hour),
	}
}

func TestRoomStoreLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			room := model.NewRoom("night", "", true, 2, "host")
			require.NoError(t, store.Create(ctx, room))
			assert.ErrorIs(t, store.Create(ctx, room), ErrConflict)

			got, err := store.Get(ctx, room.Code)
			require.NoError(t, err)
			assert.Equal(t, room.Participants, got.Participants)

			joined, err := store.Update(ctx, room.Code, func(r *model.Room) error {
				if !r.Join("guest") {
					return ErrRoomFull
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"guest", "host"}, joined.Participants)

			_, err = store.Update(ctx, room.Code, func(r *model.Room) error {
				if !r.Join("late") {
					return ErrRoomFull
				}
				return nil
			})
			assert.ErrorIs(t, err, ErrRoomFull)

			left, err := store.Update(ctx, room.Code, func(r *model.Room) error {
				r.Leave("host")
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, "guest", left.HostID)

			gone, err := store.Update(ctx, room.Code, func(r *model.Room) error {
				r.Leave("guest")
				return nil
			})
			require.NoError(t, err)
			assert.Nil(t, gone)

			_, err = store.Get(ctx, room.Code)
			assert.ErrorIs(t, err, ErrRoomNotFound)
			_, err = store.Update(ctx, room.Code, func(*model.Room) error { return nil })
			assert.ErrorIs(t, err, ErrRoomNotFound)
		})
	}
}

func TestRoomStoreListPublic(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pub := model.NewRoom("open", "", true, 0, "a")
			priv := model.NewRoom("closed", "", false, 0, "b")
			require.NoError(t, store.Create(ctx, pub))
			require.NoError(t, store.Create(ctx, priv))

			rooms, err := store.ListPublic(ctx)
			require.NoError(t, err)
			require.Len(t, rooms, 1)
			assert.Equal(t, pub.Code, rooms[0].Code)
		})
	}
}

func TestRoomStoreMessagesCapped(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			room := model.NewRoom("chat", "", false, 0, "a")
			require.NoError(t, store.Create(ctx, room))

			for i := 0; i < model.MaxMessages+5; i++ {
				require.NoError(t, store.AddMessage(ctx, model.NewMessage(room.Code, "a", fmt.Sprintf("m%d", i))))
			}
			msgs, err := store.Messages(ctx, room.Code)
			require.NoError(t, err)
			require.Len(t, msgs, model.MaxMessages)
			assert.Equal(t, "m5", msgs[0].Text)
			assert.Equal(t, fmt.Sprintf("m%d", model.MaxMessages+4), msgs[len(msgs)-1].Text)
		})
	}
}

func TestRoomStoreSubscribe(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			room := model.NewRoom("sync", "", false, 0, "h")
			require.NoError(t, store.Create(ctx, room))

			ch, err := store.Subscribe(ctx, room.Code)
			require.NoError(t, err)

			_, err = store.Update(ctx, room.Code, func(r *model.Room) error {
				r.SetVideo("https://cdn.example.com/v.mp4", "")
				r.ApplyPlayback(true, 12.5)
				return nil
			})
			require.NoError(t, err)

			select {
			case p := <-ch:
				assert.True(t, p.Playing)
				assert.Equal(t, 12.5, p.Position)
				assert.Equal(t, "https://cdn.example.com/v.mp4", p.VideoURL)
			case <-time.After(2 * time.Second):
				t.Fatal("no playback notification")
			}

			cancel()
			assert.Eventually(t, func() bool {
				select {
				case _, ok := <-ch:
					return !ok
				default:
					return false
				}
			}, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestMemoryRoomRepoExpires(t *testing.T) {
	store := NewMemoryRoomRepo(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	room := model.NewRoom("old", "", true, 0, "a")
	require.NoError(t, store.Create(context.Background(), room))

	now = now.Add(2 * time.Minute)
	_, err := store.Get(context.Background(), room.Code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRedisRoomRepoPrunesExpiredIndexEntries(t *testing.T) {
	repo, s := newRedisRoomRepo(t)
	ctx := context.Background()
	room := model.NewRoom("brief", "", true, 0, "a")
	require.NoError(t, repo.Create(ctx, room))

	s.FastForward(2 * time.Hour)

	rooms, err := repo.ListPublic(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
	members, err := s.SMembers(publicRoomsKey)
	if err == nil {
		assert.Empty(t, members)
	}
}
