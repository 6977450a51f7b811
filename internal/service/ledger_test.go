package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"wishbot/internal/domain"
	"wishbot/internal/repository"
)

// memStore is an in-memory LedgerStore. WithTx holds a single lock for the
// whole transaction and restores a snapshot when fn fails.
type memStore struct {
	mu         sync.Mutex
	users      map[int64]*domain.User
	wishes     []domain.Wish
	nextWishID int64

	failAdjustFor int64 // AdjustTickets on this user fails inside a tx
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]*domain.User)}
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make(map[int64]*domain.User, len(m.users))
	for id, u := range m.users {
		cp := *u
		users[id] = &cp
	}
	wishes := append([]domain.Wish(nil), m.wishes...)
	nextID := m.nextWishID

	if err := fn(&memTx{m: m}); err != nil {
		m.users, m.wishes, m.nextWishID = users, wishes, nextID
		return err
	}
	return nil
}

func (m *memStore) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username != nil && strings.EqualFold(*u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) UpdateUsername(ctx context.Context, userID int64, username *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Username = username
	}
	return nil
}

func (m *memStore) ReferralCount(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.ReferrerID != nil && *u.ReferrerID == userID && u.HasWished {
			n++
		}
	}
	return n, nil
}

func (m *memStore) TotalReferrals(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.ReferrerID != nil && *u.ReferrerID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetUserWish(ctx context.Context, userID int64) (*domain.Wish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.wishes) - 1; i >= 0; i-- {
		if m.wishes[i].UserID == userID {
			w := m.wishes[i]
			return &w, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindWishByText(ctx context.Context, text string) (*domain.Wish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wishes {
		if w.Text == text {
			cp := w
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) RandomWish(ctx context.Context) (*domain.RandomWish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.wishes) == 0 {
		return nil, repository.ErrNotFound
	}
	w := m.wishes[0]
	return &domain.RandomWish{Text: w.Text, UserID: w.UserID, Username: m.users[w.UserID].Username}, nil
}

func (m *memStore) wishCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.wishes {
		if w.UserID == userID {
			n++
		}
	}
	return n
}

type memTx struct {
	m *memStore
}

func (t *memTx) LockUser(ctx context.Context, userID int64) (*domain.User, error) {
	u, ok := t.m.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t *memTx) UserExists(ctx context.Context, userID int64) (bool, error) {
	_, ok := t.m.users[userID]
	return ok, nil
}

func (t *memTx) InsertUser(ctx context.Context, userID int64, username *string, referrerID *int64) (bool, error) {
	if _, ok := t.m.users[userID]; ok {
		return false, nil
	}
	t.m.users[userID] = &domain.User{
		UserID:     userID,
		Username:   username,
		ReferrerID: referrerID,
		CreatedAt:  time.Now(),
	}
	return true, nil
}

func (t *memTx) InsertWish(ctx context.Context, userID int64, text string) (int64, error) {
	t.m.nextWishID++
	t.m.wishes = append(t.m.wishes, domain.Wish{ID: t.m.nextWishID, UserID: userID, Text: text, CreatedAt: time.Now()})
	return t.m.nextWishID, nil
}

func (t *memTx) DeleteWishes(ctx context.Context, userID int64) (int64, error) {
	kept := t.m.wishes[:0:0]
	var n int64
	for _, w := range t.m.wishes {
		if w.UserID == userID {
			n++
			continue
		}
		kept = append(kept, w)
	}
	t.m.wishes = kept
	return n, nil
}

func (t *memTx) SetHasWished(ctx context.Context, userID int64, wished bool) error {
	u, ok := t.m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.HasWished = wished
	return nil
}

func (t *memTx) AdjustTickets(ctx context.Context, userID int64, delta int64) (int64, error) {
	if t.m.failAdjustFor != 0 && t.m.failAdjustFor == userID {
		return 0, errInjected
	}
	u, ok := t.m.users[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.Tickets += delta
	if u.Tickets < 0 {
		u.Tickets = 0
	}
	return u.Tickets, nil
}

func ptr[T any](v T) *T { return &v }

func mustUser(t *testing.T, s *memStore, id int64) *domain.User {
	t.Helper()
	u, err := s.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %d: %v", id, err)
	}
	return u
}

func newLedger(t *testing.T) (*LedgerService, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewLedgerService(store, 100), store
}

func TestLedger_ReferralScenario(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)

	if _, err := l.CreateUser(ctx, 1, ptr("alice"), nil); err != nil {
		t.Fatalf("create A: %v", err)
	}
	if _, err := l.CreateUser(ctx, 2, ptr("bob"), ptr(int64(1))); err != nil {
		t.Fatalf("create B: %v", err)
	}

	ok, err := l.AddWish(ctx, 2, "hi")
	if err != nil || !ok {
		t.Fatalf("add wish = %v, %v; want true", ok, err)
	}

	a, b := mustUser(t, store, 1), mustUser(t, store, 2)
	if a.Tickets != 1 || b.Tickets != 1 || !b.HasWished {
		t.Fatalf("after add: A=%d B=%d wished=%v", a.Tickets, b.Tickets, b.HasWished)
	}

	ok, err = l.ResetWish(ctx, 2)
	if err != nil || !ok {
		t.Fatalf("reset wish = %v, %v; want true", ok, err)
	}

	a, b = mustUser(t, store, 1), mustUser(t, store, 2)
	if a.Tickets != 0 || b.Tickets != 0 || b.HasWished {
		t.Fatalf("after reset: A=%d B=%d wished=%v", a.Tickets, b.Tickets, b.HasWished)
	}
	if n := store.wishCount(2); n != 0 {
		t.Fatalf("expected wish row deleted, have %d", n)
	}
}

func TestLedger_AddWishOnlyOnce(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 10, nil, nil)

	if ok, err := l.AddWish(ctx, 10, "first"); err != nil || !ok {
		t.Fatalf("first add = %v, %v", ok, err)
	}
	if ok, err := l.AddWish(ctx, 10, "second"); err != nil || ok {
		t.Fatalf("second add = %v, %v; want false, nil", ok, err)
	}
	if u := mustUser(t, store, 10); u.Tickets != 1 {
		t.Fatalf("tickets = %d; want 1", u.Tickets)
	}
	if n := store.wishCount(10); n != 1 {
		t.Fatalf("wishes = %d; want 1", n)
	}
}

func TestLedger_AddWishWithoutReferrerCreditsOnlyUser(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)
	_, _ = l.CreateUser(ctx, 2, nil, nil)

	if ok, _ := l.AddWish(ctx, 2, "wish"); !ok {
		t.Fatalf("expected add to succeed")
	}
	if u := mustUser(t, store, 1); u.Tickets != 0 {
		t.Fatalf("unrelated user got tickets: %d", u.Tickets)
	}
	if u := mustUser(t, store, 2); u.Tickets != 1 {
		t.Fatalf("tickets = %d; want 1", u.Tickets)
	}
}

func TestLedger_AddWishUnknownUser(t *testing.T) {
	l, store := newLedger(t)

	ok, err := l.AddWish(context.Background(), 404, "hello")
	if err != nil || ok {
		t.Fatalf("add = %v, %v; want false, nil", ok, err)
	}
	if len(store.wishes) != 0 {
		t.Fatalf("wish stored for unknown user")
	}
}

func TestLedger_AddWishValidation(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)

	if _, err := l.AddWish(ctx, 1, "   "); !errors.Is(err, ErrEmptyWish) {
		t.Fatalf("err = %v; want ErrEmptyWish", err)
	}
	if _, err := l.AddWish(ctx, 1, strings.Repeat("я", 101)); !errors.Is(err, ErrWishTooLong) {
		t.Fatalf("err = %v; want ErrWishTooLong", err)
	}
	if u := mustUser(t, store, 1); u.Tickets != 0 || u.HasWished {
		t.Fatalf("validation failure changed state: %+v", u)
	}
}

func TestLedger_ResetRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)
	_, _ = l.CreateUser(ctx, 2, nil, ptr(int64(1)))

	for i := 0; i < 3; i++ {
		if ok, err := l.AddWish(ctx, 2, "again"); err != nil || !ok {
			t.Fatalf("round %d add = %v, %v", i, ok, err)
		}
		if ok, err := l.ResetWish(ctx, 2); err != nil || !ok {
			t.Fatalf("round %d reset = %v, %v", i, ok, err)
		}
	}
	if a, b := mustUser(t, store, 1), mustUser(t, store, 2); a.Tickets != 0 || b.Tickets != 0 {
		t.Fatalf("tickets drifted: A=%d B=%d", a.Tickets, b.Tickets)
	}
}

func TestLedger_ResetWithoutWish(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)

	if ok, err := l.ResetWish(ctx, 1); err != nil || ok {
		t.Fatalf("reset = %v, %v; want false, nil", ok, err)
	}
	if ok, err := l.ResetWish(ctx, 999); err != nil || ok {
		t.Fatalf("reset unknown = %v, %v; want false, nil", ok, err)
	}
}

func TestLedger_ResetFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)
	_, _ = l.CreateUser(ctx, 2, nil, ptr(int64(1)))
	_, _ = l.AddWish(ctx, 2, "wish")

	// tickets lowered behind the ledger's back
	store.mu.Lock()
	store.users[1].Tickets = 0
	store.users[2].Tickets = 0
	store.mu.Unlock()

	if ok, err := l.ResetWish(ctx, 2); err != nil || !ok {
		t.Fatalf("reset = %v, %v", ok, err)
	}
	for i := 0; i < 5; i++ {
		if ok, _ := l.ResetWish(ctx, 2); ok {
			t.Fatalf("repeated reset succeeded")
		}
	}
	if a, b := mustUser(t, store, 1), mustUser(t, store, 2); a.Tickets != 0 || b.Tickets != 0 {
		t.Fatalf("negative or non-zero tickets: A=%d B=%d", a.Tickets, b.Tickets)
	}
}

func TestLedger_StorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)
	_, _ = l.CreateUser(ctx, 2, nil, ptr(int64(1)))

	store.failAdjustFor = 1

	ok, err := l.AddWish(ctx, 2, "wish")
	if ok || !errors.Is(err, ErrStorage) {
		t.Fatalf("add = %v, %v; want false, ErrStorage", ok, err)
	}
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}

	b := mustUser(t, store, 2)
	if b.Tickets != 0 || b.HasWished {
		t.Fatalf("partial commit: %+v", b)
	}
	if n := store.wishCount(2); n != 0 {
		t.Fatalf("wish row survived rollback")
	}

	store.failAdjustFor = 0
	if ok, err := l.AddWish(ctx, 2, "wish"); err != nil || !ok {
		t.Fatalf("add after recovery = %v, %v", ok, err)
	}
}

func TestLedger_CreateUser(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)

	created, err := l.CreateUser(ctx, 5, ptr("eve"), ptr(int64(777)))
	if err != nil || !created {
		t.Fatalf("create = %v, %v", created, err)
	}
	if u := mustUser(t, store, 5); u.ReferrerID != nil {
		t.Fatalf("unknown referrer kept: %v", *u.ReferrerID)
	}

	created, err = l.CreateUser(ctx, 5, ptr("other"), nil)
	if err != nil || created {
		t.Fatalf("second create = %v, %v; want false, nil", created, err)
	}
	if u := mustUser(t, store, 5); *u.Username != "eve" {
		t.Fatalf("insert-if-absent overwrote username: %s", *u.Username)
	}

	_, _ = l.CreateUser(ctx, 6, nil, ptr(int64(6)))
	if u := mustUser(t, store, 6); u.ReferrerID != nil {
		t.Fatalf("self referral stored")
	}
}

func TestLedger_TouchUserKeepsReferrer(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)
	_, _ = l.CreateUser(ctx, 3, nil, nil)

	u, created, err := l.TouchUser(ctx, 2, ptr("carol"), ptr(int64(1)))
	if err != nil || !created || u.ReferrerID == nil || *u.ReferrerID != 1 {
		t.Fatalf("touch new = %+v, %v, %v", u, created, err)
	}

	u, created, err = l.TouchUser(ctx, 2, ptr("Carol2"), ptr(int64(3)))
	if err != nil || created {
		t.Fatalf("touch existing = %v, %v", created, err)
	}
	if *u.ReferrerID != 1 {
		t.Fatalf("referrer changed to %d", *u.ReferrerID)
	}
	if got := mustUser(t, store, 2); *got.Username != "Carol2" {
		t.Fatalf("username not refreshed: %s", *got.Username)
	}
}

func TestLedger_FindUserByUsername(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, ptr("Foo"), nil)

	for _, q := range []string{"@Foo", "foo", "FOO", " @foo "} {
		u, err := l.FindUserByUsername(ctx, q)
		if err != nil || u == nil || u.UserID != 1 {
			t.Fatalf("FindUserByUsername(%q) = %+v, %v", q, u, err)
		}
	}

	u, err := l.FindUserByUsername(ctx, "@nobody")
	if err != nil || u != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", u, err)
	}
}

func TestLedger_AddTickets(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)
	_, _ = l.AddWish(ctx, 1, "wish")

	total, ok, err := l.AddTicketsToUser(ctx, 1, 5)
	if err != nil || !ok || total != 6 {
		t.Fatalf("add tickets = %d, %v, %v; want 6", total, ok, err)
	}
	if u := mustUser(t, store, 1); !u.HasWished {
		t.Fatalf("admin grant touched wish state")
	}

	if _, ok, err := l.AddTicketsToUser(ctx, 99, 1); err != nil || ok {
		t.Fatalf("unknown user = %v, %v; want false, nil", ok, err)
	}
	for _, n := range []int64{0, -3} {
		if _, _, err := l.AddTicketsToUser(ctx, 1, n); !errors.Is(err, ErrInvalidCount) {
			t.Fatalf("count %d: err = %v; want ErrInvalidCount", n, err)
		}
	}
}

func TestLedger_ConcurrentAddWish(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)
	_, _ = l.CreateUser(ctx, 2, nil, ptr(int64(1)))

	const n = 32
	results := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := l.AddWish(ctx, 2, "race")
			if err != nil {
				t.Errorf("add: %v", err)
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("successful adds = %d; want 1", wins)
	}
	if a, b := mustUser(t, store, 1), mustUser(t, store, 2); a.Tickets != 1 || b.Tickets != 1 {
		t.Fatalf("tickets A=%d B=%d; want 1, 1", a.Tickets, b.Tickets)
	}
}

func TestLedger_ConcurrentGrantsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := l.AddTicketsToUser(ctx, 1, 2); err != nil {
				t.Errorf("grant: %v", err)
			}
		}()
	}
	wg.Wait()

	if u := mustUser(t, store, 1); u.Tickets != 100 {
		t.Fatalf("tickets = %d; want 100", u.Tickets)
	}
}

func TestLedger_ResetByUsernameAndText(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	_, _ = l.CreateUser(ctx, 1, ptr("Alice"), nil)
	_, _ = l.CreateUser(ctx, 2, ptr("bob"), nil)
	_, _ = l.AddWish(ctx, 1, "peace")
	_, _ = l.AddWish(ctx, 2, "snow")

	u, ok, err := l.ResetWishByUsername(ctx, "@alice")
	if err != nil || !ok || u.UserID != 1 {
		t.Fatalf("by username = %+v, %v, %v", u, ok, err)
	}

	u, ok, err = l.ResetWishByText(ctx, "snow")
	if err != nil || !ok || u.UserID != 2 {
		t.Fatalf("by text = %+v, %v, %v", u, ok, err)
	}

	if u, ok, err = l.ResetWishByText(ctx, "missing"); err != nil || ok || u != nil {
		t.Fatalf("missing text = %+v, %v, %v", u, ok, err)
	}

	var ids []int64
	for id, u := range store.users {
		if u.HasWished {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != 0 {
		t.Fatalf("users still wished: %v", ids)
	}
}

func TestLedger_ReferralStatsAndRandom(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	if w, err := l.RandomWish(ctx); err != nil || w != nil {
		t.Fatalf("empty random = %+v, %v", w, err)
	}

	_, _ = l.CreateUser(ctx, 1, ptr("a"), nil)
	_, _ = l.CreateUser(ctx, 2, nil, ptr(int64(1)))
	_, _ = l.CreateUser(ctx, 3, nil, ptr(int64(1)))
	_, _ = l.AddWish(ctx, 2, "x")

	wished, total, err := l.ReferralStats(ctx, 1)
	if err != nil || wished != 1 || total != 2 {
		t.Fatalf("stats = %d, %d, %v; want 1, 2", wished, total, err)
	}

	w, err := l.RandomWish(ctx)
	if err != nil || w == nil || w.Text != "x" || w.UserID != 2 {
		t.Fatalf("random = %+v, %v", w, err)
	}
}
