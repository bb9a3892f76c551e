package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout).Level(zerolog.WarnLevel)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCabin(t *testing.T, db *DB, ownerID int64, name string) *models.Cabin {
	cabin := &models.Cabin{
		OwnerID:      ownerID,
		Name:         name,
		Location:     "Bucegi, Prahova",
		Altitude:     2000,
		ContactEmail: "cabana@example.ro",
		ContactPhone: "0722123456",
	}
	require.NoError(t, db.CreateCabin(context.Background(), cabin))
	return cabin
}

func seedRoom(t *testing.T, db *DB, cabinID int64, number, capacity int, price string) *models.Room {
	room := &models.Room{
		CabinID:       cabinID,
		Number:        number,
		Capacity:      capacity,
		PricePerNight: decimal.RequireFromString(price),
	}
	require.NoError(t, db.CreateRoom(context.Background(), room))
	return room
}

func TestNewDB_File(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "nested", "cabanapp.db")

	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	_, err = os.Stat(path)
	assert.NoError(t, err)

	// tables are created idempotently
	require.NoError(t, db.createTables())
}

func TestCabinCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cabin := seedCabin(t, db, 10, "Cabana Omu")
	assert.NotZero(t, cabin.ID)

	seedRoom(t, db, cabin.ID, 2, 4, "150.50")
	seedRoom(t, db, cabin.ID, 1, 2, "100")

	got, err := db.GetCabin(ctx, cabin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cabana Omu", got.Name)
	assert.Equal(t, int64(10), got.OwnerID)
	require.Len(t, got.Rooms, 2)
	assert.Equal(t, 1, got.Rooms[0].Number, "rooms are ordered by number")
	assert.True(t, decimal.RequireFromString("150.5").Equal(got.Rooms[1].PricePerNight))

	got.Name = "Cabana Omu Nou"
	got.Altitude = 2505
	require.NoError(t, db.UpdateCabin(ctx, got))

	reloaded, err := db.GetCabin(ctx, cabin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cabana Omu Nou", reloaded.Name)
	assert.Equal(t, 2505, reloaded.Altitude)

	released, err := db.DeleteCabin(ctx, cabin.ID)
	require.NoError(t, err)
	assert.Empty(t, released)
	_, err = db.GetCabin(ctx, cabin.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rooms, err := db.ListRooms(ctx, cabin.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms, "rooms cascade with the cabin")

	_, err = db.DeleteCabin(ctx, cabin.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, db.UpdateCabin(ctx, &models.Cabin{ID: 999}), domain.ErrNotFound)
}

func TestListCabins_LocationFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedCabin(t, db, 1, "Babele")
	other := &models.Cabin{OwnerID: 1, Name: "Balea Lac", Location: "Fagaras, Sibiu", ContactEmail: "b@x.ro", ContactPhone: "0722000000"}
	require.NoError(t, db.CreateCabin(ctx, other))

	all, err := db.ListCabins(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := db.ListCabins(ctx, "sibiu")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Balea Lac", filtered[0].Name)

	none, err := db.ListCabins(ctx, "100%")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRoomCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cabin := seedCabin(t, db, 1, "Babele")
	room := seedRoom(t, db, cabin.ID, 1, 2, "100")

	dup := &models.Room{CabinID: cabin.ID, Number: 1, Capacity: 3, PricePerNight: decimal.NewFromInt(90)}
	assert.ErrorIs(t, db.CreateRoom(ctx, dup), domain.ErrRoomNumberTaken)

	orphan := &models.Room{CabinID: 999, Number: 1, Capacity: 3, PricePerNight: decimal.NewFromInt(90)}
	assert.ErrorIs(t, db.CreateRoom(ctx, orphan), domain.ErrNotFound)

	room.Capacity = 3
	room.PricePerNight = decimal.RequireFromString("120.25")
	require.NoError(t, db.UpdateRoom(ctx, room))

	got, err := db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Capacity)
	assert.Equal(t, "120.25", got.PricePerNight.String())

	second := seedRoom(t, db, cabin.ID, 2, 2, "80")
	second.Number = 1
	assert.ErrorIs(t, db.UpdateRoom(ctx, second), domain.ErrRoomNumberTaken)

	rooms, err := db.GetRoomsByIDs(ctx, []int64{second.ID, room.ID, 12345})
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, room.ID, rooms[0].ID)

	_, err = db.DeleteRoom(ctx, room.ID)
	require.NoError(t, err)
	_, err = db.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = db.DeleteRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
