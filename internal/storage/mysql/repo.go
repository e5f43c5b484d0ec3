package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"staybook/internal/domain"
)

// querier is the part of *sql.DB and *sql.Tx the repository runs statements on.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo implements domain.Store. A Repo handed to a WithAccommodationLocks callback
// runs every statement inside that callback's transaction.
type Repo struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

func New(db *sql.DB) *Repo { return &Repo{db: db, q: db} }

type scanner interface {
	Scan(dest ...any) error
}

func valJSON(v []string) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func scanAccommodation(s scanner) (domain.Accommodation, error) {
	var a domain.Accommodation
	var typ, rate string
	var amenities []byte
	if err := s.Scan(&a.ID, &typ, &a.Location, &a.Size, &amenities, &rate, &a.Availability, &a.Deleted); err != nil {
		return domain.Accommodation{}, err
	}
	a.Type = domain.AccommodationType(typ)
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &a.Amenities); err != nil {
			return domain.Accommodation{}, fmt.Errorf("accommodation %d amenities: %w", a.ID, err)
		}
	}
	m, err := domain.ParseMoney(rate)
	if err != nil {
		return domain.Accommodation{}, fmt.Errorf("accommodation %d daily rate: %w", a.ID, err)
	}
	a.DailyRate = m
	return a, nil
}

func scanBooking(s scanner) (domain.Booking, error) {
	var b domain.Booking
	var status string
	if err := s.Scan(&b.ID, &b.UserID, &b.AccommodationID, &b.CheckIn, &b.CheckOut, &status); err != nil {
		return domain.Booking{}, err
	}
	st, err := domain.ParseBookingStatus(status)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("booking %d: %w", b.ID, err)
	}
	b.Status = st
	b.CheckIn, b.CheckOut = domain.Day(b.CheckIn), domain.Day(b.CheckOut)
	return b, nil
}

func dateArg(t time.Time) string { return domain.Day(t).Format(time.DateOnly) }

func (r *Repo) GetAccommodation(ctx context.Context, id int64) (domain.Accommodation, error) {
	a, err := scanAccommodation(r.q.QueryRowContext(ctx, getAccommodationSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Accommodation{}, &domain.NotFoundError{Entity: "accommodation", ID: id}
	}
	return a, err
}

func (r *Repo) ListAccommodations(ctx context.Context, pg domain.PageQuery) ([]domain.Accommodation, error) {
	rows, err := r.q.QueryContext(ctx, listAccommodationsSQL, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Accommodation
	for rows.Next() {
		a, err := scanAccommodation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) InsertAccommodation(ctx context.Context, a domain.Accommodation) (int64, error) {
	res, err := r.q.ExecContext(ctx, insertAccommodationSQL,
		string(a.Type), a.Location, a.Size, valJSON(a.Amenities), a.DailyRate.String(), a.Availability)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) UpdateAccommodation(ctx context.Context, a domain.Accommodation) error {
	res, err := r.q.ExecContext(ctx, updateAccommodationSQL,
		string(a.Type), a.Location, a.Size, valJSON(a.Amenities), a.DailyRate.String(), a.Availability, a.ID)
	if err != nil {
		return err
	}
	return r.mustExist(ctx, res, accommodationExistsSQL, "accommodation", a.ID)
}

func (r *Repo) DeleteAccommodation(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, softDeleteAccommodationSQL, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return &domain.NotFoundError{Entity: "accommodation", ID: id}
	}
	return nil
}

// mustExist tells "row missing" from "row unchanged"; MySQL reports 0 affected rows for both.
func (r *Repo) mustExist(ctx context.Context, res sql.Result, existsSQL, entity string, id int64) error {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var one int
	err := r.q.QueryRowContext(ctx, existsSQL, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func (r *Repo) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, getBookingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, &domain.NotFoundError{Entity: "booking", ID: id}
	}
	return b, err
}

func (r *Repo) InsertBooking(ctx context.Context, b domain.Booking) (int64, error) {
	res, err := r.q.ExecContext(ctx, insertBookingSQL,
		b.UserID, b.AccommodationID, dateArg(b.CheckIn), dateArg(b.CheckOut), string(b.Status))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) UpdateBooking(ctx context.Context, b domain.Booking) error {
	if !b.Status.Valid() {
		return fmt.Errorf("%w: invalid booking status: %s", domain.ErrInvalidInput, b.Status)
	}
	res, err := r.q.ExecContext(ctx, updateBookingSQL,
		b.AccommodationID, dateArg(b.CheckIn), dateArg(b.CheckOut), string(b.Status), b.ID)
	if err != nil {
		return err
	}
	return r.mustExist(ctx, res, bookingExistsSQL, "booking", b.ID)
}

func (r *Repo) queryBookings(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) OverlappingBookings(ctx context.Context, accommodationID int64, rng domain.DateRange, excludeID int64) ([]domain.Booking, error) {
	return r.queryBookings(ctx, overlappingBookingsSQL, accommodationID, dateArg(rng.End), dateArg(rng.Start), excludeID)
}

func (r *Repo) ExpirableBookings(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	return r.queryBookings(ctx, expirableBookingsSQL, dateArg(cutoff))
}

func (r *Repo) ListBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	var where []string
	var args []any
	if q.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *q.UserID)
	}
	if q.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*q.Status))
	}
	query := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)
	return r.queryBookings(ctx, query, args...)
}

func (r *Repo) PendingPayments(ctx context.Context, userID int64) ([]domain.Payment, error) {
	rows, err := r.q.QueryContext(ctx, pendingPaymentsSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var status, amount string
		if err := rows.Scan(&p.ID, &p.BookingID, &status, &p.SessionURL, &p.SessionID, &amount); err != nil {
			return nil, err
		}
		p.Status = domain.PaymentStatus(status)
		if p.AmountToPay, err = domain.ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("payment %d amount: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// WithAccommodationLocks opens a READ COMMITTED transaction, locks the accommodation
// rows in ascending id order and runs fn on a Repo bound to that transaction. READ
// COMMITTED makes the occupancy read inside fn see bookings committed by whoever held
// the lock before us. A call on an already transactional Repo locks within the same tx.
func (r *Repo) WithAccommodationLocks(ctx context.Context, ids []int64, fn func(tx domain.Store) error) error {
	if r.tx != nil {
		if err := lockRows(ctx, r.tx, ids); err != nil {
			return err
		}
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := lockRows(ctx, tx, ids); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(&Repo{db: r.db, q: tx, tx: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			log.Warn().Err(rerr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func lockRows(ctx context.Context, tx *sql.Tx, ids []int64) error {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		var got int64
		err := tx.QueryRowContext(ctx, lockAccommodationSQL, id).Scan(&got)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.NotFoundError{Entity: "accommodation", ID: id}
		}
		if err != nil {
			return fmt.Errorf("lock accommodation %d: %w", id, err)
		}
	}
	return nil
}
