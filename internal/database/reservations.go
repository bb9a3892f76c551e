package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/models"
)

const reservationColumns = `r.id, r.user_id, r.check_in, r.check_out, r.guest_count, r.total_price, r.created_at, r.updated_at`

func scanReservation(row rowScanner) (*models.Reservation, error) {
	r := &models.Reservation{}
	err := row.Scan(
		&r.ID, &r.UserID, &r.CheckIn, &r.CheckOut, &r.GuestCount, &r.TotalPrice, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReservedRoomIDs returns every room held by a reservation overlapping [checkIn, checkOut).
func (db *DB) ReservedRoomIDs(ctx context.Context, checkIn, checkOut models.Date) (map[int64]struct{}, error) {
	query := `SELECT DISTINCT rr.room_id
              FROM reservation_rooms rr
              JOIN reservations r ON r.id = rr.reservation_id
              WHERE r.check_in < ? AND r.check_out > ?`
	rows, err := db.QueryContext(ctx, query, checkOut, checkIn)
	if err != nil {
		return nil, fmt.Errorf("failed to query reserved rooms: %w", err)
	}
	defer rows.Close()

	reserved := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reserved room: %w", err)
		}
		reserved[id] = struct{}{}
	}
	return reserved, rows.Err()
}

// findConflicts lists reservations other than excludeID that hold one of roomIDs
// on a night of [checkIn, checkOut). Each summary carries all rooms of that reservation.
func findConflicts(
	ctx context.Context,
	q querier,
	roomIDs []int64,
	checkIn, checkOut models.Date,
	excludeID int64,
) ([]models.ConflictSummary, error) {
	marks, args := inClause(roomIDs)
	query := `SELECT r.id, r.check_in, r.check_out, rr.room_id
              FROM reservations r
              JOIN reservation_rooms rr ON rr.reservation_id = r.id
              WHERE r.id IN (SELECT held.reservation_id FROM reservation_rooms held WHERE held.room_id IN (` + marks + `))
                AND r.check_in < ? AND r.check_out > ?
                AND r.id <> ?
              ORDER BY r.check_in, r.id, rr.room_id`
	args = append(args, checkOut, checkIn, excludeID)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []models.ConflictSummary
	for rows.Next() {
		var (
			id       int64
			in, out  models.Date
			heldRoom int64
		)
		if err := rows.Scan(&id, &in, &out, &heldRoom); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		if n := len(conflicts); n > 0 && conflicts[n-1].ReservationID == id {
			conflicts[n-1].RoomIDs = append(conflicts[n-1].RoomIDs, heldRoom)
			continue
		}
		conflicts = append(conflicts, models.ConflictSummary{
			ReservationID: id,
			CheckIn:       in,
			CheckOut:      out,
			RoomIDs:       []int64{heldRoom},
		})
	}
	return conflicts, rows.Err()
}

// CreateReservationWithLock checks the requested rooms for overlapping stays and
// inserts the reservation with its room links in a single write transaction.
// On overlap nothing is written and a *domain.ConflictError is returned.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	roomIDs := r.RoomIDs()
	conflicts, err := findConflicts(ctx, tx, roomIDs, r.CheckIn, r.CheckOut, 0)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &domain.ConflictError{Conflicts: conflicts}
	}

	ts := now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (user_id, check_in, check_out, guest_count, total_price, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.CheckIn, r.CheckOut, r.GuestCount, r.TotalPrice.String(), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := linkRooms(ctx, tx, id, r); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	r.ID = id
	r.CreatedAt = ts
	r.UpdatedAt = ts
	return nil
}

// UpdateReservationWithLock replaces dates, guests, price and the whole room set
// of an existing reservation. The reservation never conflicts with itself.
func (db *DB) UpdateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, r.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load reservation in tx: %w", err)
	}

	roomIDs := r.RoomIDs()
	conflicts, err := findConflicts(ctx, tx, roomIDs, r.CheckIn, r.CheckOut, r.ID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &domain.ConflictError{Conflicts: conflicts}
	}

	ts := now()
	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET check_in = ?, check_out = ?, guest_count = ?, total_price = ?, updated_at = ?
         WHERE id = ?`,
		r.CheckIn, r.CheckOut, r.GuestCount, r.TotalPrice.String(), ts, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation in tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservation_rooms WHERE reservation_id = ?`, r.ID); err != nil {
		return fmt.Errorf("failed to unlink rooms in tx: %w", err)
	}
	if err := linkRooms(ctx, tx, r.ID, r); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation update: %w", err)
	}
	r.UpdatedAt = ts
	return nil
}

// linkRooms attaches the rooms of r to reservationID. If the overlap trigger
// fires, the conflicting reservations are read back from the same transaction.
func linkRooms(ctx context.Context, tx *sql.Tx, reservationID int64, r *models.Reservation) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reservation_rooms (reservation_id, room_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare room link: %w", err)
	}
	defer stmt.Close()

	roomIDs := r.RoomIDs()
	for _, roomID := range roomIDs {
		_, err := stmt.ExecContext(ctx, reservationID, roomID)
		switch {
		case isOverlapViolation(err):
			return overlapConflict(ctx, tx, reservationID, r)
		case isForeignKeyViolation(err):
			return domain.ErrRoomNotFound
		case err != nil:
			return fmt.Errorf("failed to link room %d: %w", roomID, err)
		}
	}
	return nil
}

func overlapConflict(ctx context.Context, q querier, reservationID int64, r *models.Reservation) error {
	conflicts, err := findConflicts(ctx, q, r.RoomIDs(), r.CheckIn, r.CheckOut, reservationID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBookingConflict, err)
	}
	if len(conflicts) == 0 {
		return domain.ErrBookingConflict
	}
	return &domain.ConflictError{Conflicts: conflicts}
}

// GetReservation returns the reservation hydrated with its rooms and their cabin.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	if err := hydrate(ctx, db, []*models.Reservation{r}); err != nil {
		return nil, err
	}
	return r, nil
}

// ListUserReservations returns the user's reservations ordered by check-in.
func (db *DB) ListUserReservations(ctx context.Context, userID int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations r
              WHERE r.user_id = ? ORDER BY r.check_in ASC, r.id ASC`
	return db.listReservations(ctx, query, userID)
}

const (
	cabinReservationIDs = `SELECT rr.reservation_id FROM reservation_rooms rr
                  JOIN rooms rm ON rm.id = rr.room_id
                  WHERE rm.cabin_id = ?`
	roomReservationIDs = `SELECT reservation_id FROM reservation_rooms WHERE room_id = ?`
)

// ListCabinReservations returns reservations holding rooms of the cabin, ordered by check-in.
func (db *DB) ListCabinReservations(ctx context.Context, cabinID int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations r
              WHERE r.id IN (` + cabinReservationIDs + `)
              ORDER BY r.check_in ASC, r.id ASC`
	return db.listReservations(ctx, query, cabinID)
}

// releaseReservations deletes, inside tx, the reservations whose ids the
// subquery selects and returns them as they were before removal.
func releaseReservations(ctx context.Context, tx *sql.Tx, idsQuery string, arg int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations r
              WHERE r.id IN (` + idsQuery + `)
              ORDER BY r.check_in ASC, r.id ASC`
	released, err := queryReservations(ctx, tx, query, arg)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id IN (`+idsQuery+`)`, arg); err != nil {
		return nil, fmt.Errorf("failed to delete reservations: %w", err)
	}
	return released, nil
}

func (db *DB) ListReservations(ctx context.Context) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations r ORDER BY r.check_in ASC, r.id ASC`
	return db.listReservations(ctx, query)
}

func (db *DB) listReservations(ctx context.Context, query string, args ...interface{}) ([]*models.Reservation, error) {
	return queryReservations(ctx, db, query, args...)
}

func queryReservations(ctx context.Context, q querier, query string, args ...interface{}) ([]*models.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	reservations := []*models.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	// release the connection before hydrating; :memory: stores have only one
	rows.Close()

	if err := hydrate(ctx, q, reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// hydrate attaches rooms and the owning cabin to each reservation.
func hydrate(ctx context.Context, q querier, reservations []*models.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Reservation, len(reservations))
	ids := make([]int64, 0, len(reservations))
	for _, r := range reservations {
		r.Rooms = []*models.Room{}
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	marks, args := inClause(ids)
	query := `SELECT rr.reservation_id, ` + roomColumns + `
              FROM reservation_rooms rr
              JOIN rooms rm ON rm.id = rr.room_id
              WHERE rr.reservation_id IN (` + marks + `)
              ORDER BY rm.number`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load reservation rooms: %w", err)
	}

	cabinIDs := make(map[int64]struct{})
	for rows.Next() {
		var reservationID int64
		room := &models.Room{}
		err := rows.Scan(&reservationID,
			&room.ID, &room.CabinID, &room.Number, &room.Capacity, &room.PricePerNight,
			&room.Description, &room.CreatedAt, &room.UpdatedAt,
		)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan reservation room: %w", err)
		}
		r := byID[reservationID]
		r.Rooms = append(r.Rooms, room)
		cabinIDs[room.CabinID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate reservation rooms: %w", err)
	}
	rows.Close()

	cabins := make(map[int64]*models.Cabin, len(cabinIDs))
	for id := range cabinIDs {
		cabin, err := getCabin(ctx, q, id)
		if err != nil {
			return err
		}
		cabins[id] = cabin
	}

	for _, r := range reservations {
		if len(r.Rooms) > 0 {
			r.Cabin = cabins[r.Rooms[0].CabinID]
		}
	}
	return nil
}

func (db *DB) DeleteReservation(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
