package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"staybook/internal/domain"
)

// memStore is an in-memory domain.Store. WithAccommodationLocks holds one mutex per
// accommodation, which is enough to serialize admissions the way row locks do.
type memStore struct {
	mu       sync.Mutex
	accs     map[int64]domain.Accommodation
	bookings map[int64]domain.Booking
	payments map[int64][]domain.Payment
	nextID   int64

	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex

	calls []string

	failUpdate map[int64]error
	failList   error
}

func newMemStore() *memStore {
	return &memStore{
		accs:       map[int64]domain.Accommodation{},
		bookings:   map[int64]domain.Booking{},
		payments:   map[int64][]domain.Payment{},
		locks:      map[int64]*sync.Mutex{},
		failUpdate: map[int64]error{},
		nextID:     100,
	}
}

func (s *memStore) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *memStore) called(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (s *memStore) addAccommodation(id int64, capacity int) domain.Accommodation {
	a := domain.Accommodation{ID: id, Type: domain.TypeApartment, Location: "Kyiv", DailyRate: 10000, Availability: capacity}
	s.accs[id] = a
	return a
}

func (s *memStore) addBooking(b domain.Booking) domain.Booking {
	if b.ID == 0 {
		s.nextID++
		b.ID = s.nextID
	}
	s.bookings[b.ID] = b
	return b
}

func (s *memStore) booking(id int64) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memStore) GetAccommodation(ctx context.Context, id int64) (domain.Accommodation, error) {
	s.record("GetAccommodation")
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accs[id]
	if !ok || a.Deleted {
		return domain.Accommodation{}, &domain.NotFoundError{Entity: "accommodation", ID: id}
	}
	return a, nil
}

func (s *memStore) ListAccommodations(ctx context.Context, pg domain.PageQuery) ([]domain.Accommodation, error) {
	s.record("ListAccommodations")
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Accommodation
	for _, a := range s.accs {
		if !a.Deleted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, pg), nil
}

func (s *memStore) InsertAccommodation(ctx context.Context, a domain.Accommodation) (int64, error) {
	s.record("InsertAccommodation")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	s.accs[a.ID] = a
	return a.ID, nil
}

func (s *memStore) UpdateAccommodation(ctx context.Context, a domain.Accommodation) error {
	s.record("UpdateAccommodation")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accs[a.ID] = a
	return nil
}

func (s *memStore) DeleteAccommodation(ctx context.Context, id int64) error {
	s.record("DeleteAccommodation")
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accs[id]
	if !ok || a.Deleted {
		return &domain.NotFoundError{Entity: "accommodation", ID: id}
	}
	a.Deleted = true
	s.accs[id] = a
	return nil
}

func (s *memStore) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	s.record("GetBooking")
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, &domain.NotFoundError{Entity: "booking", ID: id}
	}
	return b, nil
}

func (s *memStore) InsertBooking(ctx context.Context, b domain.Booking) (int64, error) {
	s.record("InsertBooking")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b.ID = s.nextID
	s.bookings[b.ID] = b
	return b.ID, nil
}

func (s *memStore) UpdateBooking(ctx context.Context, b domain.Booking) error {
	s.record("UpdateBooking")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpdate[b.ID]; err != nil {
		return err
	}
	if _, ok := s.bookings[b.ID]; !ok {
		return &domain.NotFoundError{Entity: "booking", ID: b.ID}
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *memStore) OverlappingBookings(ctx context.Context, accID int64, r domain.DateRange, excludeID int64) ([]domain.Booking, error) {
	s.record("OverlappingBookings")
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.AccommodationID == accID && b.Status.Active() && b.ID != excludeID && b.Range().Overlaps(r) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) ExpirableBookings(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	s.record("ExpirableBookings")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.Expirable(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	s.record("ListBookings")
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if q.UserID != nil && b.UserID != *q.UserID {
			continue
		}
		if q.Status != nil && b.Status != *q.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, q.PageQuery), nil
}

func (s *memStore) PendingPayments(ctx context.Context, userID int64) ([]domain.Payment, error) {
	s.record("PendingPayments")
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.payments[userID] {
		if p.Status == domain.PaymentPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) WithAccommodationLocks(ctx context.Context, ids []int64, fn func(tx domain.Store) error) error {
	s.record("WithAccommodationLocks")
	uniq := append([]int64(nil), ids...)
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	var held []*sync.Mutex
	for i, id := range uniq {
		if i > 0 && id == uniq[i-1] {
			continue
		}
		s.lockMu.Lock()
		m, ok := s.locks[id]
		if !ok {
			m = &sync.Mutex{}
			s.locks[id] = m
		}
		s.lockMu.Unlock()
		m.Lock()
		held = append(held, m)
	}
	defer func() {
		for _, m := range held {
			m.Unlock()
		}
	}()
	return fn(s)
}

func page[T any](in []T, pg domain.PageQuery) []T {
	if pg.Offset >= len(in) {
		return nil
	}
	in = in[pg.Offset:]
	if pg.Limit > 0 && pg.Limit < len(in) {
		in = in[:pg.Limit]
	}
	return in
}

type fakeNotifier struct {
	mu   sync.Mutex
	got  []domain.Notification
	err  error
	boom bool
}

func (n *fakeNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note)
	if n.boom {
		panic("sink exploded")
	}
	return n.err
}

func (n *fakeNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(n.got))
	for _, g := range n.got {
		out = append(out, g.Kind)
	}
	return out
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released []string
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released = append(l.released, key)
		return nil
	}, true, nil
}

var errDisk = errors.New("disk on fire")

func d(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func pending(id, user, acc int64, from, to string) domain.Booking {
	return domain.Booking{ID: id, UserID: user, AccommodationID: acc, CheckIn: d(from), CheckOut: d(to), Status: domain.StatusPending}
}

// movingStore reassigns a booking to another accommodation right before each lock
// acquisition, the way a concurrent UpdateBookingDetails would.
type movingStore struct {
	*memStore
	bookingID int64
	moves     []int64
	locked    [][]int64
}

func (m *movingStore) WithAccommodationLocks(ctx context.Context, ids []int64, fn func(tx domain.Store) error) error {
	m.locked = append(m.locked, append([]int64(nil), ids...))
	if len(m.moves) > 0 {
		to := m.moves[0]
		m.moves = m.moves[1:]
		m.mu.Lock()
		b := m.bookings[m.bookingID]
		b.AccommodationID = to
		m.bookings[m.bookingID] = b
		m.mu.Unlock()
	}
	return m.memStore.WithAccommodationLocks(ctx, ids, fn)
}
