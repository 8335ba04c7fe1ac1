package messaging

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jane   = UserProfile{ID: "U", Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Role: RoleConsumer}
	seller = UserProfile{ID: "T", Email: "sales@scrap.example", CompanyName: "Scrap Co", Role: RoleProducer}
)

func newContactService(store *memStore, attempts *memAttempts) *Service {
	return NewService(store, store, attempts, Options{Logger: zerolog.Nop()})
}

func TestAutoContact_SendsIntroOnce(t *testing.T) {
	store := newMemStore(jane, seller)
	svc := newContactService(store, newMemAttempts())
	ac := svc.NewAutoContact()
	link := DeepLink{TargetID: "T", ProductName: "Scrap Metal"}

	var selected []string
	out, err := ac.Run(context.Background(), "U", link, func(p UserProfile) { selected = append(selected, p.ID) })
	require.NoError(t, err)

	assert.Equal(t, ContactReady, out.State)
	require.NotNil(t, out.Target)
	assert.Equal(t, seller, *out.Target)
	require.NotNil(t, out.Sent)
	assert.Equal(t, "Hi, I'm Jane Doe and I'm interested in Scrap Metal.", out.Sent.Content)
	assert.Equal(t, "U", out.Sent.SenderID)
	assert.Equal(t, "T", out.Sent.ReceiverID)
	assert.Equal(t, []string{"T"}, selected)

	// the effect re-runs in the same mount
	again, err := ac.Run(context.Background(), "U", link, func(p UserProfile) { selected = append(selected, p.ID) })
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Equal(t, 1, store.insertCount())
	assert.Equal(t, []string{"T"}, selected)
}

func TestAutoContact_ConcurrentInvocationsSendOnce(t *testing.T) {
	store := newMemStore(jane, seller)
	ac := newContactService(store, newMemAttempts()).NewAutoContact()
	link := DeepLink{TargetID: "T", ProductName: "Scrap Metal"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ac.Run(context.Background(), "U", link, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.insertCount())
	assert.Equal(t, ContactReady, ac.State())
}

func TestAutoContact_AttemptFlagSpansMounts(t *testing.T) {
	store := newMemStore(jane, seller)
	attempts := newMemAttempts()
	svc := newContactService(store, attempts)
	link := DeepLink{TargetID: "T", ProductName: "Scrap Metal"}

	// history is wiped between mounts so only the flag can stop the second send
	_, err := svc.NewAutoContact().Run(context.Background(), "U", link, nil)
	require.NoError(t, err)
	store.mu.Lock()
	store.msgs = nil
	store.mu.Unlock()

	out, err := svc.NewAutoContact().Run(context.Background(), "U", link, nil)
	require.NoError(t, err)
	assert.Nil(t, out.Sent)
	assert.Equal(t, 1, store.insertCount())
}

func TestAutoContact_HistorySuppresses(t *testing.T) {
	for _, dir := range []Message{
		{ID: "1", SenderID: "U", ReceiverID: "T", CreatedAt: at(1)},
		{ID: "1", SenderID: "T", ReceiverID: "U", CreatedAt: at(1)},
	} {
		store := newMemStore(jane, seller)
		store.seed(dir)
		out, err := newContactService(store, newMemAttempts()).NewAutoContact().
			Run(context.Background(), "U", DeepLink{TargetID: "T", ProductName: "Scrap Metal"}, nil)
		require.NoError(t, err)
		assert.Nil(t, out.Sent)
		assert.NotNil(t, out.Target)
		assert.Equal(t, ContactReady, out.State)
		assert.Zero(t, store.insertCount())
	}
}

func TestAutoContact_NoProductHintSelectsWithoutSending(t *testing.T) {
	store := newMemStore(jane, seller)
	var selected bool
	out, err := newContactService(store, newMemAttempts()).NewAutoContact().
		Run(context.Background(), "U", DeepLink{TargetID: "T"}, func(UserProfile) { selected = true })
	require.NoError(t, err)
	assert.True(t, selected)
	assert.Equal(t, ContactReady, out.State)
	assert.Nil(t, out.Sent)
	assert.Zero(t, store.insertCount())
}

func TestAutoContact_HistoryCheckFailureDoesNotSend(t *testing.T) {
	store := newMemStore(jane, seller)
	store.failCount = true
	out, err := newContactService(store, newMemAttempts()).NewAutoContact().
		Run(context.Background(), "U", DeepLink{TargetID: "T", ProductName: "Scrap Metal"}, nil)
	require.NoError(t, err)
	assert.Nil(t, out.Sent)
	assert.Zero(t, store.insertCount())
}

func TestAutoContact_AttemptStoreFailureDoesNotSend(t *testing.T) {
	store := newMemStore(jane, seller)
	attempts := newMemAttempts()
	attempts.fail = true
	out, err := newContactService(store, attempts).NewAutoContact().
		Run(context.Background(), "U", DeepLink{TargetID: "T", ProductName: "Scrap Metal"}, nil)
	require.NoError(t, err)
	assert.Nil(t, out.Sent)
	assert.Zero(t, store.insertCount())
}

func TestAutoContact_TargetLookupFailureStaysIdle(t *testing.T) {
	store := newMemStore(jane)
	ac := newContactService(store, newMemAttempts()).NewAutoContact()
	var selected bool

	_, err := ac.Run(context.Background(), "U", DeepLink{TargetID: "T", ProductName: "Scrap Metal"}, func(UserProfile) { selected = true })
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ContactIdle, ac.State())
	assert.False(t, selected)
	assert.Zero(t, store.insertCount())
}

func TestAutoContact_IgnoresSelfAndEmptyTarget(t *testing.T) {
	store := newMemStore(jane)
	ac := newContactService(store, newMemAttempts()).NewAutoContact()

	out, err := ac.Run(context.Background(), "U", DeepLink{TargetID: "U", ProductName: "x"}, nil)
	require.NoError(t, err)
	assert.Nil(t, out.Target)
	out, err = ac.Run(context.Background(), "U", DeepLink{ProductName: "x"}, nil)
	require.NoError(t, err)
	assert.Nil(t, out.Target)
	assert.Equal(t, ContactIdle, ac.State())

	_, err = ac.Run(context.Background(), "", DeepLink{TargetID: "T"}, nil)
	assert.ErrorIs(t, err, ErrNoCurrentUser)
}

func TestAutoContact_SenderProfileFallback(t *testing.T) {
	store := newMemStore(jane, seller)
	store.failProfile["U"] = true
	out, err := newContactService(store, newMemAttempts()).NewAutoContact().
		Run(context.Background(), "U", DeepLink{TargetID: "T", ProductName: "Pallets"}, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Sent)
	assert.Equal(t, "Hi, I'm a consumer and I'm interested in Pallets.", out.Sent.Content)
}

func TestContactState_String(t *testing.T) {
	assert.Equal(t, "idle", ContactIdle.String())
	assert.Equal(t, "resolving_target", ContactResolvingTarget.String())
	assert.Equal(t, "history_check", ContactHistoryCheck.String())
	assert.Equal(t, "awaiting_send", ContactAwaitingSend.String())
	assert.Equal(t, "ready", ContactReady.String())
}
