package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"staybook/internal/app"
	"staybook/internal/domain"
)

var sweepNow = time.Date(2025, 5, 10, 2, 0, 0, 0, time.UTC)

func TestSweep_NoCandidates(t *testing.T) {
	s := newMemStore()
	s.addAccommodation(7, 1)
	s.addBooking(pending(1, 1, 7, "2025-05-10", "2025-05-20"))
	n := &fakeNotifier{}

	rep, err := app.NewSweeper(s, n).Sweep(context.Background(), sweepNow)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Candidates != 0 || len(rep.Expired) != 0 {
		t.Fatalf("report: %+v", rep)
	}
	if !rep.Cutoff.Equal(d("2025-05-11")) {
		t.Fatalf("cutoff = %s", rep.Cutoff)
	}
	if k := n.kinds(); len(k) != 1 || k[0] != domain.KindNoExpiredBookings {
		t.Fatalf("notifications: %v", k)
	}
	if n.got[0].Text != "No expired bookings today!" {
		t.Fatalf("text: %q", n.got[0].Text)
	}
	if c := s.called("UpdateBooking"); c != 0 {
		t.Fatalf("UpdateBooking called %d times", c)
	}
}

func TestSweep_IsolatesFailures(t *testing.T) {
	s := newMemStore()
	s.addAccommodation(7, 5)
	s.addBooking(pending(1, 1, 7, "2025-05-01", "2025-05-05"))
	s.addBooking(pending(2, 1, 7, "2025-05-08", "2025-05-10"))
	s.addBooking(pending(3, 1, 7, "2025-05-09", "2025-05-11")) // checks out tomorrow
	s.addBooking(pending(4, 1, 7, "2025-05-09", "2025-05-12")) // after the cutoff
	canceled := pending(5, 1, 7, "2025-05-01", "2025-05-02")
	canceled.Status = domain.StatusCanceled
	s.addBooking(canceled)
	s.failUpdate[2] = errDisk
	n := &fakeNotifier{}

	rep, err := app.NewSweeper(s, n).Sweep(context.Background(), sweepNow)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Candidates != 3 {
		t.Fatalf("candidates = %d", rep.Candidates)
	}
	if len(rep.Expired) != 2 || rep.Expired[0] != 1 || rep.Expired[1] != 3 {
		t.Fatalf("expired = %v", rep.Expired)
	}
	if len(rep.Failed) != 1 || rep.Failed[0] != 2 {
		t.Fatalf("failed = %v", rep.Failed)
	}

	want := map[int64]domain.BookingStatus{
		1: domain.StatusExpired, 2: domain.StatusPending, 3: domain.StatusExpired,
		4: domain.StatusPending, 5: domain.StatusCanceled,
	}
	for id, st := range want {
		if got := s.booking(id).Status; got != st {
			t.Fatalf("booking %d status = %s, want %s", id, got, st)
		}
	}

	k := n.kinds()
	wantKinds := []domain.NotificationKind{
		domain.KindBookingExpired, domain.KindAccommodationReleased,
		domain.KindBookingExpired, domain.KindAccommodationReleased,
	}
	if len(k) != len(wantKinds) {
		t.Fatalf("notifications: %v", k)
	}
	for i := range k {
		if k[i] != wantKinds[i] {
			t.Fatalf("notification %d = %s", i, k[i])
		}
	}
}

func TestSweep_AlreadyExpiredStaysCandidate(t *testing.T) {
	s := newMemStore()
	s.addAccommodation(7, 1)
	b := pending(1, 1, 7, "2025-04-01", "2025-04-02")
	b.Status = domain.StatusExpired
	s.addBooking(b)

	rep, err := app.NewSweeper(s, nil).Sweep(context.Background(), sweepNow)
	if err != nil || rep.Candidates != 1 || len(rep.Expired) != 1 {
		t.Fatalf("report: %+v %v", rep, err)
	}
}

func TestSweep_NotifierFailureDoesNotStopRun(t *testing.T) {
	s := newMemStore()
	s.addAccommodation(7, 5)
	s.addBooking(pending(1, 1, 7, "2025-05-01", "2025-05-05"))
	s.addBooking(pending(2, 1, 7, "2025-05-01", "2025-05-05"))

	rep, err := app.NewSweeper(s, &fakeNotifier{err: errors.New("kafka down")}).Sweep(context.Background(), sweepNow)
	if err != nil || len(rep.Expired) != 2 {
		t.Fatalf("report: %+v %v", rep, err)
	}
}

func TestSweep_ListFailure(t *testing.T) {
	s := newMemStore()
	s.failList = errDisk

	if _, err := app.NewSweeper(s, nil).Sweep(context.Background(), sweepNow); !errors.Is(err, errDisk) {
		t.Fatalf("want errDisk, got %v", err)
	}
}

func TestSweepJob_OncePerDay(t *testing.T) {
	s := newMemStore()
	s.addAccommodation(7, 1)
	s.addBooking(pending(1, 1, 7, "2025-05-01", "2025-05-05"))
	l := &fakeLocker{}
	job := app.NewSweepJob(app.NewSweeper(s, nil), l, time.Hour)

	rep, err := job.Run(context.Background(), sweepNow)
	if err != nil || rep.Skipped || len(rep.Expired) != 1 {
		t.Fatalf("first run: %+v %v", rep, err)
	}
	rep, err = job.Run(context.Background(), sweepNow.Add(time.Hour))
	if err != nil || !rep.Skipped {
		t.Fatalf("second run same day: %+v %v", rep, err)
	}
	rep, err = job.Run(context.Background(), sweepNow.AddDate(0, 0, 1))
	if err != nil || rep.Skipped {
		t.Fatalf("next day: %+v %v", rep, err)
	}
	if len(l.released) != 0 {
		t.Fatalf("lock released after success: %v", l.released)
	}
}

func TestSweepJob_ReleasesOnError(t *testing.T) {
	s := newMemStore()
	s.failList = errDisk
	l := &fakeLocker{}
	job := app.NewSweepJob(app.NewSweeper(s, nil), l, time.Hour)

	if _, err := job.Run(context.Background(), sweepNow); !errors.Is(err, errDisk) {
		t.Fatalf("want errDisk, got %v", err)
	}
	if len(l.released) != 1 || l.released[0] != "staybook:sweep:2025-05-10" {
		t.Fatalf("released = %v", l.released)
	}
}

func TestSweepJob_LockError(t *testing.T) {
	l := &fakeLocker{err: errors.New("redis down")}
	job := app.NewSweepJob(app.NewSweeper(newMemStore(), nil), l, time.Hour)
	if _, err := job.Run(context.Background(), sweepNow); err == nil {
		t.Fatal("expected lock error")
	}
}
