package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/menu-subscriptions/internal/apperror"
	"github.com/sakif/menu-subscriptions/internal/auth"
	"github.com/sakif/menu-subscriptions/internal/model"
	"github.com/sakif/menu-subscriptions/internal/repository"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================

// fakeSubscriberRepo is an in-memory repository.SubscriberRepository keyed by
// email, like the real stores. It counts calls so tests can assert that
// rejected input never reaches the store.
type fakeSubscriberRepo struct {
	mu          sync.Mutex
	byEmail     map[string]*model.Subscriber
	nextID      int
	upserts     int
	deactivates int

	// set to a non-nil error to simulate the store being down
	err error
}

func newFakeRepo() *fakeSubscriberRepo {
	return &fakeSubscriberRepo{byEmail: make(map[string]*model.Subscriber)}
}

func (f *fakeSubscriberRepo) Upsert(_ context.Context, sub *model.Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.err != nil {
		return f.err
	}

	now := time.Now()
	existing, ok := f.byEmail[sub.Email]
	if !ok {
		f.nextID++
		existing = &model.Subscriber{
			ID:        fmt.Sprintf("sub-%d", f.nextID),
			Email:     sub.Email,
			CreatedAt: now,
		}
		f.byEmail[sub.Email] = existing
	}
	existing.Token = sub.Token
	existing.Active = true
	existing.UpdatedAt = now
	*sub = *existing
	return nil
}

func (f *fakeSubscriberRepo) DeactivateByToken(_ context.Context, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivates++
	if f.err != nil {
		return 0, f.err
	}

	var n int64
	for _, s := range f.byEmail {
		if s.Token == token {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (f *fakeSubscriberRepo) GetByEmail(_ context.Context, email string) (*model.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("subscriber", email)
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSubscriberRepo) GetByToken(_ context.Context, token string) (*model.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.byEmail {
		if s.Token == token {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("subscriber", "token")
}

func (f *fakeSubscriberRepo) ListActive(_ context.Context, opts repository.ListOptions) ([]model.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Subscriber
	for _, s := range f.byEmail {
		if s.Active {
			out = append(out, *s)
		}
	}
	if opts.Offset >= len(out) {
		return []model.Subscriber{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeSubscriberRepo) Close() error { return nil }

func (f *fakeSubscriberRepo) record(t *testing.T, email string) *model.Subscriber {
	t.Helper()
	s, err := f.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return s
}

func newTestService(t *testing.T) (*SubscriptionService, *fakeSubscriberRepo) {
	t.Helper()
	repo := newFakeRepo()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSubscriptionService(repo, logger), repo
}

// =========================================================================
// SUBSCRIBE
// =========================================================================

func TestSubscribe_Success(t *testing.T) {
	svc, repo := newTestService(t)

	sub, err := svc.Subscribe(context.Background(), "a@b.com")
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", sub.Email)
	assert.True(t, sub.Active)
	assert.True(t, auth.IsWellFormedUnsubscribeToken(sub.Token), "token %q", sub.Token)
	assert.Equal(t, 1, repo.upserts)

	stored := repo.record(t, "a@b.com")
	assert.Equal(t, sub.Token, stored.Token)
	assert.True(t, stored.Active)
}

func TestSubscribe_Normalizes(t *testing.T) {
	svc, repo := newTestService(t)

	sub, err := svc.Subscribe(context.Background(), "User@Example.COM ")
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", sub.Email)
	repo.record(t, "user@example.com")
}

func TestSubscribe_InvalidEmail_NoStoreWrite(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"plainaddress",
		"no-at-sign.com",
		"user@localhost",
		"user@nodot",
		"@example.com",
		"user@",
		"user@.com",
		"user@example.",
		"user@@example.com",
		"user name@example.com",
		"user@exa mple.com",
	}

	for _, in := range inputs {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			svc, repo := newTestService(t)

			_, err := svc.Subscribe(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperror.CodeInvalidEmail, appErr.Code)
			assert.Zero(t, repo.upserts, "invalid input reached the store")
		})
	}
}

func TestSubscribe_TwiceYieldsNewTokenOneRecord(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "a@b.com")
	require.NoError(t, err)
	second, err := svc.Subscribe(ctx, "A@B.com")
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.byEmail, 1)
	assert.Equal(t, 2, repo.upserts)
}

func TestSubscribe_StoreUnavailable(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("dial tcp: connection refused")

	_, err := svc.Subscribe(context.Background(), "a@b.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.NotErrorIs(t, err, apperror.ErrValidation)
}

func TestSubscribe_TokenSourceFailure(t *testing.T) {
	svc, repo := newTestService(t)
	svc.newToken = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := svc.Subscribe(context.Background(), "a@b.com")
	require.Error(t, err)
	assert.Zero(t, repo.upserts)
}

func TestSubscribe_ConcurrentSameEmail(t *testing.T) {
	svc, repo := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Subscribe(context.Background(), "race@example.com")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, repo.byEmail, 1)
	assert.Equal(t, 20, repo.upserts)
}

// =========================================================================
// UNSUBSCRIBE
// =========================================================================

func TestUnsubscribe_DeactivatesAndIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "a@b.com")
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, sub.Token))
	assert.False(t, repo.record(t, "a@b.com").Active)

	require.NoError(t, svc.Unsubscribe(ctx, sub.Token))
	assert.False(t, repo.record(t, "a@b.com").Active)
}

func TestUnsubscribe_NeverIssuedToken(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "a@b.com")
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, "00000000000000000000000000000000"))
	assert.True(t, repo.record(t, "a@b.com").Active)
}

func TestUnsubscribe_MalformedTokenSkipsStore(t *testing.T) {
	svc, repo := newTestService(t)

	for _, tok := range []string{"", "   ", "short", "' OR 1=1 --", "0123456789ABCDEF0123456789ABCDEF"} {
		require.NoError(t, svc.Unsubscribe(context.Background(), tok))
	}
	assert.Zero(t, repo.deactivates)
}

func TestUnsubscribe_TrimsToken(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "a@b.com")
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, " "+sub.Token+"\n"))
	assert.False(t, repo.record(t, "a@b.com").Active)
}

func TestUnsubscribe_StoreUnavailable(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = context.DeadlineExceeded

	err := svc.Unsubscribe(context.Background(), "0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestLifecycleScenario: subscribe → unsubscribe → re-subscribe.
func TestLifecycleScenario(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "a@b.com")
	require.NoError(t, err)
	rec := repo.record(t, "a@b.com")
	assert.True(t, rec.Active)
	assert.Len(t, rec.Token, 32)

	require.NoError(t, svc.Unsubscribe(ctx, first.Token))
	assert.False(t, repo.record(t, "a@b.com").Active)

	second, err := svc.Subscribe(ctx, "a@b.com")
	require.NoError(t, err)
	rec = repo.record(t, "a@b.com")
	assert.True(t, rec.Active)
	assert.NotEqual(t, first.Token, rec.Token)
	assert.Equal(t, second.Token, rec.Token)

	// The first token is now stale and must not deactivate the new subscription.
	require.NoError(t, svc.Unsubscribe(ctx, first.Token))
	assert.True(t, repo.record(t, "a@b.com").Active)
}

// =========================================================================
// PENDING (CONFIRMATION STEP)
// =========================================================================

func TestPendingUnsubscribe_DoesNotMutate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "alice@example.com")
	require.NoError(t, err)

	p, err := svc.PendingUnsubscribe(ctx, sub.Token)
	require.NoError(t, err)
	assert.True(t, p.Known)
	assert.True(t, p.Active)
	assert.Equal(t, "a***@example.com", p.MaskedEmail)

	assert.True(t, repo.record(t, "alice@example.com").Active)
	assert.Zero(t, repo.deactivates)
}

func TestPendingUnsubscribe_UnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.PendingUnsubscribe(context.Background(), "ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	assert.False(t, p.Known)
	assert.Empty(t, p.MaskedEmail)

	p, err = svc.PendingUnsubscribe(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, p.Known)
}

func TestPendingUnsubscribe_StoreUnavailable(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("connection reset")

	_, err := svc.PendingUnsubscribe(context.Background(), "0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

// =========================================================================
// ACTIVE SUBSCRIBERS
// =========================================================================

func TestActiveSubscribers_ExcludesInactive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "a@example.com")
	require.NoError(t, err)
	gone, err := svc.Subscribe(ctx, "b@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.Unsubscribe(ctx, gone.Token))

	subs, err := svc.ActiveSubscribers(ctx, 0, -3)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "a@example.com", subs[0].Email)
}

func TestActiveSubscribers_StoreUnavailable(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("down")

	_, err := svc.ActiveSubscribers(context.Background(), 10, 0)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@b.com", MaskEmail("a@b.com"))
	assert.Equal(t, "j***@example.com", MaskEmail("jane.doe@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
}
