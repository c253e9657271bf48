package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authgate/identity"
)

func testClaims(role identity.Role, exp time.Time) identity.Claims {
	return identity.Claims{
		Username:  "alice",
		Role:      role,
		Subject:   "auth0|alice",
		ExpiresAt: exp,
	}
}

func newSessionStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "ag", time.Hour), mr
}

// storeContract runs the behavior every Store must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create then get round-trips", func(t *testing.T) {
		store := newStore(t)
		exp := time.Now().Add(2 * time.Hour)

		created, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, exp))
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "abc", got.AccessToken)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, identity.RoleAdmin, got.Role)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, created.ExpiresAt.Equal(got.ExpiresAt))
		assert.True(t, got.Authenticated())
	})

	t.Run("destroy then get is absent", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, "abc", testClaims(identity.RoleUser, time.Time{}))
		require.NoError(t, err)

		require.NoError(t, store.Destroy(ctx, created.ID))
		_, err = store.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("destroy of unknown id succeeds", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Destroy(ctx, "does-not-exist"))
		assert.NoError(t, store.Destroy(ctx, ""))
	})

	t.Run("get of unknown id is absent", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("claims without role are refused", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Create(ctx, "abc", identity.Claims{Username: "alice"})
		assert.ErrorIs(t, err, ErrInvalidSession)
		_, err = store.Create(ctx, "abc", identity.Claims{Role: identity.RoleAdmin})
		assert.ErrorIs(t, err, ErrInvalidSession)
		_, err = store.Create(ctx, "", testClaims(identity.RoleAdmin, time.Time{}))
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("already expired token is refused", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, time.Now().Add(-time.Minute)))
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("session never outlives token", func(t *testing.T) {
		store := newStore(t)
		exp := time.Now().Add(10 * time.Minute)
		created, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, exp))
		require.NoError(t, err)
		assert.Equal(t, exp.Unix(), created.ExpiresAt.Unix())
	})

	t.Run("ids are unique", func(t *testing.T) {
		store := newStore(t)
		a, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, time.Time{}))
		require.NoError(t, err)
		b, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, time.Time{}))
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("concurrent create get destroy", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		errs := make(chan error, 32)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sess, err := store.Create(ctx, "abc", testClaims(identity.RoleUser, time.Time{}))
				if err != nil {
					errs <- err
					return
				}
				got, err := store.Get(ctx, sess.ID)
				if err != nil {
					errs <- err
					return
				}
				if got.Username != "alice" || got.Role != identity.RoleUser {
					errs <- errors.New("partial session observed")
					return
				}
				errs <- store.Destroy(ctx, sess.ID)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	})
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, func(*testing.T) Store { return NewMemoryStore(time.Hour) })
}

func TestRedisStoreContract(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		store, _ := newSessionStoreTest(t)
		return store
	})
}

func TestMemoryStoreExpiryAndSweep(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	sess, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, store.Sweep())
	assert.Zero(t, store.Len())
}

func TestRedisStoreUsesKeyTTL(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, time.Time{}))
	require.NoError(t, err)

	ttl := mr.TTL(store.key(sess.ID))
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreCorruptBlobIsAbsent(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, time.Time{}))
	require.NoError(t, err)
	require.NoError(t, mr.Set(store.key(sess.ID), "garbage"))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(store.key(sess.ID)))
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "abc", testClaims(identity.RoleAdmin, time.Time{}))
	require.NoError(t, err)
	mr.Close()

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = store.Create(ctx, "abc", testClaims(identity.RoleAdmin, time.Time{}))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, store.Destroy(ctx, sess.ID), ErrStoreUnavailable)
	_, err = store.Ping(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRedisStoreCount(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, "abc", testClaims(identity.RoleUser, time.Time{}))
		require.NoError(t, err)
	}
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSessionAuthenticated(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.Authenticated())
	assert.False(t, (&Session{Username: "alice"}).Authenticated())
	assert.False(t, (&Session{Role: identity.RoleAdmin}).Authenticated())
	assert.False(t, (&Session{Username: "alice", Role: "root"}).Authenticated())
	assert.True(t, (&Session{Username: "alice", Role: identity.RoleUser}).Authenticated())
}
