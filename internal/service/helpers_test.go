package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adiselav/CabanApp/internal/config"
	"github.com/adiselav/CabanApp/internal/database"
	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/events"
	"github.com/adiselav/CabanApp/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	owner    = models.Identity{UserID: 1, Email: "owner@example.ro", Role: models.RoleOwner}
	traveler = models.Identity{UserID: 7, Email: "ana@example.ro", Role: models.RoleTraveler}
	stranger = models.Identity{UserID: 8, Email: "ion@example.ro", Role: models.RoleTraveler}
	admin    = models.Identity{UserID: 99, Email: "admin@example.ro", Role: models.RoleAdmin}
)

func june(day int) models.Date {
	return models.NewDate(2025, time.June, day)
}

func setupDB(t *testing.T) *database.DB {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func addCabin(t *testing.T, db *database.DB, name string) *models.Cabin {
	cabin := &models.Cabin{
		OwnerID:      owner.UserID,
		Name:         name,
		Location:     "Bucegi",
		ContactEmail: "cabana@example.ro",
		ContactPhone: "0722123456",
	}
	require.NoError(t, db.CreateCabin(context.Background(), cabin))
	return cabin
}

func addRoom(t *testing.T, db *database.DB, cabinID int64, number, capacity int, price string) *models.Room {
	room := &models.Room{
		CabinID:       cabinID,
		Number:        number,
		Capacity:      capacity,
		PricePerNight: decimal.RequireFromString(price),
	}
	require.NoError(t, db.CreateRoom(context.Background(), room))
	return room
}

type recordedTask struct {
	taskType      string
	reservationID int64
}

type fakeSyncWorker struct {
	mu    sync.Mutex
	tasks []recordedTask
}

func (f *fakeSyncWorker) EnqueueTask(_ context.Context, taskType string, reservationID int64, _ *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, recordedTask{taskType: taskType, reservationID: reservationID})
	return nil
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

type bookingFixture struct {
	db      *database.DB
	svc     *BookingService
	bus     *events.EventBus
	sync    *fakeSyncWorker
	events  []string
	payload []events.ReservationEventPayload
}

func newBookingFixture(t *testing.T, cfg config.BookingConfig, limiter domain.RateLimitStore) *bookingFixture {
	f := &bookingFixture{db: setupDB(t), bus: events.NewEventBus(), sync: &fakeSyncWorker{}}
	record := func(e *events.Event) error {
		var p events.ReservationEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		f.events = append(f.events, e.Type)
		f.payload = append(f.payload, p)
		return nil
	}
	for _, et := range []string{events.EventReservationCreated, events.EventReservationUpdated, events.EventReservationCancelled} {
		f.bus.Subscribe(et, record)
	}

	logger := zerolog.Nop()
	f.svc = NewBookingService(f.db, f.bus, f.sync, limiter, cfg, &logger)
	return f
}

func stay(in, out models.Date, guests int, rooms ...*models.Room) domain.ReservationInput {
	ids := make([]int64, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return domain.ReservationInput{CheckIn: in, CheckOut: out, GuestCount: guests, RoomIDs: ids}
}
