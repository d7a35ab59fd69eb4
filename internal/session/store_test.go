package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ephemeral-chat/internal/log"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime/realtimetest"
)

type recorder struct {
	mu    sync.Mutex
	seen  []Session
	ready chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ready: make(chan struct{}, 16)}
}

func (r *recorder) record(s Session) {
	r.mu.Lock()
	r.seen = append(r.seen, s)
	r.mu.Unlock()
	r.ready <- struct{}{}
}

func (r *recorder) wait(t *testing.T) Session {
	t.Helper()
	select {
	case <-r.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("no session change observed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[len(r.seen)-1]
}

func testUser() realtime.User {
	return realtime.User{ID: "abc123", Email: "a@x.com"}
}

func TestStoreStartsLoading(t *testing.T) {
	store := NewStore(realtimetest.NewAuth(), log.Nop())

	cur := store.Current()
	assert.True(t, cur.IsLoading)
	assert.Nil(t, cur.Identity)
}

func TestStoreResolvesPersistedSession(t *testing.T) {
	auth := realtimetest.NewAuth()
	auth.SetSession(realtimetest.NewSession(testUser()))
	store := NewStore(auth, log.Nop())
	defer store.Close()

	rec := newRecorder()
	store.OnChange(rec.record)
	store.Start(context.Background())

	got := rec.wait(t)
	require.False(t, got.IsLoading)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "abc123", got.Identity.ID)
	assert.Equal(t, "AnonymousUser-abc1", got.Identity.DisplayName)
}

func TestStoreFetchFailureFailsOpen(t *testing.T) {
	auth := realtimetest.NewAuth()
	auth.GetSessionErr = errors.New("network down")
	store := NewStore(auth, log.Nop())
	defer store.Close()

	rec := newRecorder()
	store.OnChange(rec.record)
	store.Start(context.Background())

	got := rec.wait(t)
	assert.False(t, got.IsLoading)
	assert.Nil(t, got.Identity)
}

func TestStoreReplacesSessionOnAuthEvents(t *testing.T) {
	auth := realtimetest.NewAuth()
	store := NewStore(auth, log.Nop())
	defer store.Close()

	rec := newRecorder()
	store.OnChange(rec.record)
	store.Start(context.Background())
	require.Nil(t, rec.wait(t).Identity)

	user := testUser()
	user.Metadata.Username = "alice"
	auth.Emit(realtime.AuthEventSignedIn, realtimetest.NewSession(user))
	signedIn := rec.wait(t)
	require.NotNil(t, signedIn.Identity)
	assert.Equal(t, "alice", signedIn.Identity.DisplayName)
	assert.False(t, signedIn.IsLoading)

	auth.Emit(realtime.AuthEventSignedOut, nil)
	assert.Nil(t, rec.wait(t).Identity)
}

func TestStoreCloseUnsubscribesOnce(t *testing.T) {
	auth := realtimetest.NewAuth()
	store := NewStore(auth, log.Nop())
	store.Start(context.Background())
	require.Equal(t, 1, auth.ListenerCount())

	store.Close()
	store.Close()

	assert.Equal(t, 0, auth.ListenerCount())
	assert.Equal(t, 1, auth.UnsubscribeCount())
}

func TestStoreNoDispatchAfterClose(t *testing.T) {
	auth := realtimetest.NewAuth()
	release := auth.BlockGetSession()
	store := NewStore(auth, log.Nop())

	calls := 0
	var mu sync.Mutex
	store.OnChange(func(Session) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	store.Start(context.Background())
	store.Close()
	release()

	auth.Emit(realtime.AuthEventSignedIn, realtimetest.NewSession(testUser()))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestOnChangeCancelIsIdempotent(t *testing.T) {
	auth := realtimetest.NewAuth()
	store := NewStore(auth, log.Nop())
	defer store.Close()

	rec := newRecorder()
	cancel := store.OnChange(rec.record)
	cancel()
	cancel()

	store.Start(context.Background())
	select {
	case <-rec.ready:
		t.Fatal("cancelled listener should not be called")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "bob", DisplayName("bob", "abc123"))
	assert.Equal(t, "AnonymousUser-abc1", DisplayName("", "abc123"))
	assert.Equal(t, "AnonymousUser-ab", DisplayName("", "ab"))
}
