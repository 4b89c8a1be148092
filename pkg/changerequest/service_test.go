package changerequest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/skillhub/pkg/changerequest"
	"github.com/dmitrymomot/skillhub/pkg/notifications"
)

type dispatched struct {
	Type       notifications.EventType
	Recipients []string
	Payload    map[string]any
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []dispatched
	hook  func(dispatched)
}

func (n *recordingNotifier) Dispatch(_ context.Context, t notifications.EventType, recipients []string, payload any, _ ...notifications.DispatchOption) {
	d := dispatched{Type: t, Recipients: append([]string(nil), recipients...), Payload: payload.(map[string]any)}
	if n.hook != nil {
		n.hook(d)
	}
	n.mu.Lock()
	n.calls = append(n.calls, d)
	n.mu.Unlock()
}

func (n *recordingNotifier) Calls() []dispatched {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]dispatched(nil), n.calls...)
}

var (
	owner     = changerequest.Actor{UserID: "owner"}
	admin     = changerequest.Actor{UserID: "root", IsAdmin: true}
	stranger  = changerequest.Actor{UserID: "stranger"}
	requester = changerequest.Actor{UserID: "alice"}
)

type fixture struct {
	store    *changerequest.MemoryStore
	notifier *recordingNotifier
	svc      *changerequest.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := changerequest.NewMemoryStore()
	store.PutSkill(changerequest.Skill{ID: "S", OwnerIDs: []string{"owner", "co-owner"}, Version: 1})
	notifier := &recordingNotifier{}
	svc := changerequest.NewService(store, notifier,
		changerequest.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		changerequest.WithClock(func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }),
	)
	return &fixture{store: store, notifier: notifier, svc: svc}
}

func (f *fixture) open(t *testing.T, by changerequest.Actor, title string) *changerequest.ChangeRequest {
	t.Helper()
	cr, err := f.svc.Create(context.Background(), by, "S", title, "details")
	require.NoError(t, err)
	return cr
}

func (f *fixture) version(t *testing.T) int {
	t.Helper()
	sk, ok := f.store.Skill("S")
	require.True(t, ok)
	return sk.Version
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("notifies owners except requester", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		cr := f.open(t, owner, "  Fix typo ")
		assert.Equal(t, "Fix typo", cr.Title)
		assert.Equal(t, changerequest.StatusOpen, cr.Status)
		assert.Nil(t, cr.ResolvedByID)

		calls := f.notifier.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, notifications.ChangeRequestCreated, calls[0].Type)
		assert.Equal(t, []string{"co-owner"}, calls[0].Recipients)

		stored, err := f.svc.Get(context.Background(), cr.ID)
		require.NoError(t, err)
		assert.Equal(t, *cr, *stored)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.Create(ctx, changerequest.Actor{}, "S", "t", "")
		assert.ErrorIs(t, err, changerequest.ErrForbidden)

		_, err = f.svc.Create(ctx, requester, "S", "   ", "")
		assert.ErrorIs(t, err, changerequest.ErrInvalidInput)

		_, err = f.svc.Create(ctx, requester, "missing", "t", "")
		assert.ErrorIs(t, err, changerequest.ErrNotFound)

		assert.Empty(t, f.notifier.Calls())
	})
}

func TestApprove(t *testing.T) {
	t.Parallel()

	t.Run("scenario: two requests bump the version twice", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		r1 := f.open(t, requester, "R1")
		r2 := f.open(t, changerequest.Actor{UserID: "bob"}, "R2")
		before := len(f.notifier.Calls())

		res, err := f.svc.Approve(ctx, r1.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, 2, res.SkillVersion)
		assert.Equal(t, changerequest.StatusApproved, res.ChangeRequest.Status)
		require.NotNil(t, res.ChangeRequest.ResolvedByID)
		assert.Equal(t, "owner", *res.ChangeRequest.ResolvedByID)
		require.NotNil(t, res.ChangeRequest.ResolvedAt)
		assert.Equal(t, 2, f.version(t))

		calls := f.notifier.Calls()[before:]
		require.Len(t, calls, 1)
		assert.Equal(t, notifications.ChangeRequestApproved, calls[0].Type)
		assert.Equal(t, []string{"alice"}, calls[0].Recipients)
		assert.Equal(t, 2, calls[0].Payload["version"])

		stored, err := f.svc.Get(ctx, r1.ID)
		require.NoError(t, err)
		assert.Equal(t, changerequest.StatusApproved, stored.Status)

		res, err = f.svc.Approve(ctx, r2.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, 3, res.SkillVersion)
		assert.Equal(t, 3, f.version(t))
	})

	t.Run("admin may approve", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		cr := f.open(t, requester, "by admin")

		_, err := f.svc.Approve(context.Background(), cr.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, 2, f.version(t))
	})

	t.Run("non owner is forbidden", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		cr := f.open(t, requester, "nope")

		_, err := f.svc.Approve(context.Background(), cr.ID, requester)
		require.ErrorIs(t, err, changerequest.ErrForbidden)
		assert.Equal(t, changerequest.KindForbidden, changerequest.Kind(err))
		assert.Equal(t, 1, f.version(t))
	})

	t.Run("not open is invalid state without mutation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		cr := f.open(t, requester, "done")

		_, err := f.svc.Reject(ctx, cr.ID, owner)
		require.NoError(t, err)
		before := len(f.notifier.Calls())
		rejected, err := f.svc.Get(ctx, cr.ID)
		require.NoError(t, err)

		_, err = f.svc.Approve(ctx, cr.ID, owner)
		require.ErrorIs(t, err, changerequest.ErrInvalidState)
		assert.Equal(t, changerequest.KindInvalidState, changerequest.Kind(err))

		after, err := f.svc.Get(ctx, cr.ID)
		require.NoError(t, err)
		assert.Equal(t, *rejected, *after)
		assert.Equal(t, 1, f.version(t))
		assert.Len(t, f.notifier.Calls(), before)
	})

	t.Run("missing request", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.Approve(context.Background(), "nope", owner)
		assert.Equal(t, changerequest.KindNotFound, changerequest.Kind(err))
	})

	t.Run("notification follows commit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		cr := f.open(t, requester, "ordering")

		var seen changerequest.Status
		f.notifier.hook = func(d dispatched) {
			if d.Type != notifications.ChangeRequestApproved {
				return
			}
			stored, err := f.store.Get(context.Background(), cr.ID)
			if assert.NoError(t, err) {
				seen = stored.Status
			}
			sk, _ := f.store.Skill("S")
			assert.Equal(t, 2, sk.Version)
		}

		_, err := f.svc.Approve(context.Background(), cr.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, changerequest.StatusApproved, seen)
	})
}

func TestApproveConcurrentDifferentRequests(t *testing.T) {
	t.Parallel()

	const n = 16
	f := newFixture(t)

	ids := make([]string, n)
	for i := range n {
		ids[i] = f.open(t, changerequest.Actor{UserID: fmt.Sprintf("user-%d", i)}, fmt.Sprintf("R%d", i)).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	versions := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Approve(context.Background(), ids[i], owner)
			errs[i] = err
			if err == nil {
				versions[i] = res.SkillVersion
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1+n, f.version(t))
	assert.ElementsMatch(t, expectedVersions(2, n), versions, "each approval must observe a distinct version")
}

func expectedVersions(from, n int) []int {
	out := make([]int, n)
	for i := range n {
		out[i] = from + i
	}
	return out
}

func TestApproveSameRequestConcurrently(t *testing.T) {
	t.Parallel()

	const n = 8
	f := newFixture(t)
	cr := f.open(t, requester, "contended")
	before := len(f.notifier.Calls())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalid   int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), cr.ID, owner)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, changerequest.ErrInvalidState):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, invalid)
	assert.Equal(t, 2, f.version(t))
	assert.Len(t, f.notifier.Calls(), before+1)
}

func TestReject(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	cr := f.open(t, requester, "reject me")
	before := len(f.notifier.Calls())

	_, err := f.svc.Reject(ctx, cr.ID, stranger)
	require.ErrorIs(t, err, changerequest.ErrForbidden)

	res, err := f.svc.Reject(ctx, cr.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, changerequest.StatusRejected, res.ChangeRequest.Status)
	require.NotNil(t, res.ChangeRequest.ResolvedByID)
	assert.Equal(t, "owner", *res.ChangeRequest.ResolvedByID)
	assert.NotNil(t, res.ChangeRequest.ResolvedAt)
	assert.Zero(t, res.SkillVersion)
	assert.Equal(t, 1, f.version(t))

	calls := f.notifier.Calls()[before:]
	require.Len(t, calls, 1)
	assert.Equal(t, notifications.ChangeRequestRejected, calls[0].Type)
	assert.Equal(t, []string{"alice"}, calls[0].Recipients)

	_, err = f.svc.Reject(ctx, cr.ID, owner)
	assert.ErrorIs(t, err, changerequest.ErrInvalidState)
}

func TestWithdraw(t *testing.T) {
	t.Parallel()

	t.Run("non requester non admin is forbidden", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		cr := f.open(t, requester, "mine")

		_, err := f.svc.Withdraw(context.Background(), cr.ID, owner)
		require.ErrorIs(t, err, changerequest.ErrForbidden)
		assert.Equal(t, changerequest.KindForbidden, changerequest.Kind(err))

		stored, err := f.svc.Get(context.Background(), cr.ID)
		require.NoError(t, err)
		assert.Equal(t, changerequest.StatusOpen, stored.Status)
	})

	t.Run("requester withdraws without resolver or notification", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		cr := f.open(t, requester, "mine")
		before := len(f.notifier.Calls())

		res, err := f.svc.Withdraw(context.Background(), cr.ID, requester)
		require.NoError(t, err)
		assert.Equal(t, changerequest.StatusWithdrawn, res.ChangeRequest.Status)
		assert.Nil(t, res.ChangeRequest.ResolvedByID)
		assert.Nil(t, res.ChangeRequest.ResolvedAt)
		assert.Len(t, f.notifier.Calls(), before)

		_, err = f.svc.Withdraw(context.Background(), cr.ID, requester)
		assert.ErrorIs(t, err, changerequest.ErrInvalidState)
	})

	t.Run("admin withdraws", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		cr := f.open(t, requester, "mine")

		_, err := f.svc.Withdraw(context.Background(), cr.ID, admin)
		require.NoError(t, err)
	})
}

// failingIncrementStore breaks the version bump so the transaction rolls back.
type failingIncrementStore struct {
	*changerequest.MemoryStore
}

type failingIncrementTx struct {
	changerequest.Tx
}

var errIncrement = errors.New("disk full")

func (failingIncrementTx) IncrementSkillVersion(context.Context, string) (int, error) {
	return 0, errIncrement
}

func (s failingIncrementStore) InTx(ctx context.Context, fn func(context.Context, changerequest.Tx) error) error {
	return s.MemoryStore.InTx(ctx, func(ctx context.Context, tx changerequest.Tx) error {
		return fn(ctx, failingIncrementTx{tx})
	})
}

func TestApproveRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	store := changerequest.NewMemoryStore()
	store.PutSkill(changerequest.Skill{ID: "S", OwnerIDs: []string{"owner"}, Version: 1})
	notifier := &recordingNotifier{}
	svc := changerequest.NewService(failingIncrementStore{store}, notifier,
		changerequest.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	cr, err := svc.Create(context.Background(), requester, "S", "t", "")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), cr.ID, owner)
	require.ErrorIs(t, err, errIncrement)
	assert.Equal(t, changerequest.KindUnknown, changerequest.Kind(err))

	stored, err := svc.Get(context.Background(), cr.ID)
	require.NoError(t, err)
	assert.Equal(t, changerequest.StatusOpen, stored.Status)
	assert.Nil(t, stored.ResolvedByID)
	assert.Empty(t, notifier.Calls())

	// Locks were released: a later approval through the healthy store succeeds.
	healthy := changerequest.NewService(store, notifier)
	res, err := healthy.Approve(context.Background(), cr.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SkillVersion)
}

func TestListBySkill(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, requester, "a")
	b := f.open(t, requester, "b")
	_, err := f.svc.Withdraw(ctx, a.ID, requester)
	require.NoError(t, err)

	all, err := f.svc.ListBySkill(ctx, "S", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest first")

	open, err := f.svc.ListBySkill(ctx, "S", changerequest.StatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, b.ID, open[0].ID)

	_, err = f.svc.ListBySkill(ctx, "S", "BOGUS")
	assert.ErrorIs(t, err, changerequest.ErrInvalidInput)
}

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want changerequest.ErrorKind
	}{
		{nil, changerequest.KindUnknown},
		{changerequest.ErrNotFound, changerequest.KindNotFound},
		{fmt.Errorf("wrapped: %w", changerequest.ErrForbidden), changerequest.KindForbidden},
		{changerequest.ErrInvalidState, changerequest.KindInvalidState},
		{changerequest.ErrInvalidInput, changerequest.KindInvalidInput},
		{errors.New("boom"), changerequest.KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, changerequest.Kind(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "invalid_state", changerequest.KindInvalidState.String())
}
