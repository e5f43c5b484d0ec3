package mysql

const accommodationColumns = `id, type, location, size, amenities, daily_rate, availability, is_deleted`

const getAccommodationSQL = `
SELECT ` + accommodationColumns + `
FROM accommodations
WHERE id = ? AND is_deleted = FALSE
`

const listAccommodationsSQL = `
SELECT ` + accommodationColumns + `
FROM accommodations
WHERE is_deleted = FALSE
ORDER BY id
LIMIT ? OFFSET ?
`

const insertAccommodationSQL = `
INSERT INTO accommodations
  (type, location, size, amenities, daily_rate, availability)
VALUES
  (?, ?, ?, ?, ?, ?)
`

const updateAccommodationSQL = `
UPDATE accommodations
SET type = ?, location = ?, size = ?, amenities = ?, daily_rate = ?, availability = ?
WHERE id = ? AND is_deleted = FALSE
`

const accommodationExistsSQL = `SELECT 1 FROM accommodations WHERE id = ? AND is_deleted = FALSE`

const softDeleteAccommodationSQL = `
UPDATE accommodations SET is_deleted = TRUE WHERE id = ? AND is_deleted = FALSE
`

// lockAccommodationSQL takes the row lock that serializes admissions per accommodation.
// Soft-deleted rows are locked too so that cancellations keep working for them.
const lockAccommodationSQL = `SELECT id FROM accommodations WHERE id = ? FOR UPDATE`

const bookingColumns = `id, user_id, accommodation_id, check_in, check_out, status`

const getBookingSQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE id = ?
`

const bookingExistsSQL = `SELECT 1 FROM bookings WHERE id = ?`

const insertBookingSQL = `
INSERT INTO bookings
  (user_id, accommodation_id, check_in, check_out, status)
VALUES
  (?, ?, ?, ?, ?)
`

const updateBookingSQL = `
UPDATE bookings
SET accommodation_id = ?, check_in = ?, check_out = ?, status = ?
WHERE id = ?
`

// Closed ranges: [a,b] and [c,d] intersect when a <= d AND c <= b.
const overlappingBookingsSQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE accommodation_id = ?
  AND status NOT IN ('CANCELED', 'EXPIRED')
  AND check_in <= ?
  AND check_out >= ?
  AND id <> ?
`

const expirableBookingsSQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE check_out <= ?
  AND status <> 'CANCELED'
ORDER BY id
`

const pendingPaymentsSQL = `
SELECT p.id, p.booking_id, p.status, p.session_url, p.session_id, p.amount_to_pay
FROM payments p
JOIN bookings b ON b.id = p.booking_id
WHERE b.user_id = ? AND p.status = 'PENDING'
ORDER BY p.id
`
