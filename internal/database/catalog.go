package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/models"
)

const cabinColumns = `c.id, c.owner_id, c.name, c.location, c.altitude, c.contact_email,
       c.contact_phone, c.description, c.score_average, c.telegram_chat_id,
       c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM reviews rv WHERE rv.cabin_id = c.id)`

const roomColumns = `rm.id, rm.cabin_id, rm.number, rm.capacity, rm.price_per_night,
       rm.description, rm.created_at, rm.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCabin(row rowScanner) (*models.Cabin, error) {
	c := &models.Cabin{}
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Location, &c.Altitude, &c.ContactEmail,
		&c.ContactPhone, &c.Description, &c.ScoreAverage, &c.TelegramChatID,
		&c.CreatedAt, &c.UpdatedAt, &c.ReviewCount,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanRoom(row rowScanner) (*models.Room, error) {
	r := &models.Room{}
	err := row.Scan(
		&r.ID, &r.CabinID, &r.Number, &r.Capacity, &r.PricePerNight,
		&r.Description, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (db *DB) CreateCabin(ctx context.Context, cabin *models.Cabin) error {
	query := `INSERT INTO cabins (
                owner_id, name, location, altitude, contact_email, contact_phone,
                description, telegram_chat_id, created_at, updated_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	ts := now()
	result, err := db.ExecContext(ctx, query,
		cabin.OwnerID, cabin.Name, cabin.Location, cabin.Altitude, cabin.ContactEmail,
		cabin.ContactPhone, cabin.Description, cabin.TelegramChatID, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create cabin: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	cabin.ID = id
	cabin.ScoreAverage = 0
	cabin.ReviewCount = 0
	cabin.CreatedAt = ts
	cabin.UpdatedAt = ts
	return nil
}

// GetCabin returns the cabin with its rooms, review count and score average.
func (db *DB) GetCabin(ctx context.Context, id int64) (*models.Cabin, error) {
	cabin, err := getCabin(ctx, db, id)
	if err != nil {
		return nil, err
	}

	rooms, err := listRooms(ctx, db, id)
	if err != nil {
		return nil, err
	}
	cabin.Rooms = rooms
	return cabin, nil
}

func getCabin(ctx context.Context, q querier, id int64) (*models.Cabin, error) {
	query := `SELECT ` + cabinColumns + ` FROM cabins c WHERE c.id = ?`
	cabin, err := scanCabin(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cabin: %w", err)
	}
	return cabin, nil
}

// ListCabins returns cabins whose location contains the given text, case-insensitively.
// An empty location lists every cabin.
func (db *DB) ListCabins(ctx context.Context, location string) ([]*models.Cabin, error) {
	query := `SELECT ` + cabinColumns + ` FROM cabins c
              WHERE ? = '' OR instr(lower(c.location), lower(?)) > 0
              ORDER BY c.name ASC, c.id ASC`
	rows, err := db.QueryContext(ctx, query, location, location)
	if err != nil {
		return nil, fmt.Errorf("failed to list cabins: %w", err)
	}
	defer rows.Close()

	var cabins []*models.Cabin
	for rows.Next() {
		cabin, err := scanCabin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cabin: %w", err)
		}
		cabins = append(cabins, cabin)
	}
	return cabins, rows.Err()
}

func (db *DB) UpdateCabin(ctx context.Context, cabin *models.Cabin) error {
	query := `UPDATE cabins SET name = ?, location = ?, altitude = ?, contact_email = ?,
                contact_phone = ?, description = ?, telegram_chat_id = ?, updated_at = ?
              WHERE id = ?`
	ts := now()
	result, err := db.ExecContext(ctx, query,
		cabin.Name, cabin.Location, cabin.Altitude, cabin.ContactEmail,
		cabin.ContactPhone, cabin.Description, cabin.TelegramChatID, ts, cabin.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cabin: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	cabin.UpdatedAt = ts
	return nil
}

// DeleteCabin removes the cabin, its rooms, its reviews and every reservation
// holding one of its rooms. The removed reservations are returned.
func (db *DB) DeleteCabin(ctx context.Context, id int64) ([]*models.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	released, err := releaseReservations(ctx, tx, cabinReservationIDs, id)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM cabins WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete cabin: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cabin delete: %w", err)
	}
	return released, nil
}

func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	query := `INSERT INTO rooms (cabin_id, number, capacity, price_per_night, description, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	ts := now()
	result, err := db.ExecContext(ctx, query,
		room.CabinID, room.Number, room.Capacity, room.PricePerNight.String(), room.Description, ts, ts,
	)
	switch {
	case isUniqueViolation(err):
		return domain.ErrRoomNumberTaken
	case isForeignKeyViolation(err):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("failed to create room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	room.ID = id
	room.CreatedAt = ts
	room.UpdatedAt = ts
	return nil
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms rm WHERE rm.id = ?`
	room, err := scanRoom(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// GetRoomsByIDs returns the rooms that exist among ids, ordered by id.
// Missing ids are silently absent from the result.
func (db *DB) GetRoomsByIDs(ctx context.Context, ids []int64) ([]*models.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := inClause(ids)
	query := `SELECT ` + roomColumns + ` FROM rooms rm WHERE rm.id IN (` + marks + `) ORDER BY rm.id`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (db *DB) ListRooms(ctx context.Context, cabinID int64) ([]*models.Room, error) {
	return listRooms(ctx, db, cabinID)
}

func listRooms(ctx context.Context, q querier, cabinID int64) ([]*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms rm WHERE rm.cabin_id = ? ORDER BY rm.number`
	rows, err := q.QueryContext(ctx, query, cabinID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []*models.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (db *DB) UpdateRoom(ctx context.Context, room *models.Room) error {
	query := `UPDATE rooms SET number = ?, capacity = ?, price_per_night = ?, description = ?, updated_at = ?
              WHERE id = ?`
	ts := now()
	result, err := db.ExecContext(ctx, query,
		room.Number, room.Capacity, room.PricePerNight.String(), room.Description, ts, room.ID,
	)
	if isUniqueViolation(err) {
		return domain.ErrRoomNumberTaken
	}
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	room.UpdatedAt = ts
	return nil
}

// DeleteRoom removes the room together with every reservation that holds it.
// The removed reservations are returned.
func (db *DB) DeleteRoom(ctx context.Context, id int64) ([]*models.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	released, err := releaseReservations(ctx, tx, roomReservationIDs, id)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete room: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit room delete: %w", err)
	}
	return released, nil
}
