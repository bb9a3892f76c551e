package service

import (
	"context"
	"errors"
	"testing"

	"github.com/adiselav/CabanApp/internal/config"
	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/events"
	"github.com/adiselav/CabanApp/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateReservation_PricesAndHydrates(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	ctx := context.Background()

	cabin := addCabin(t, f.db, "Babele")
	room := addRoom(t, f.db, cabin.ID, 1, 2, "100")

	r, err := f.svc.CreateReservation(ctx, traveler, stay(june(1), june(4), 2, room))
	require.NoError(t, err)

	assert.Equal(t, "300", r.TotalPrice.String())
	assert.Equal(t, traveler.UserID, r.UserID)
	assert.Equal(t, 3, r.Nights())
	require.Len(t, r.Rooms, 1)
	require.NotNil(t, r.Cabin)
	assert.Equal(t, "Babele", r.Cabin.Name)

	assert.Equal(t, []string{events.EventReservationCreated}, f.events)
	assert.Equal(t, "Babele", f.payload[0].CabinName)
	assert.Equal(t, []int{1}, f.payload[0].RoomNumbers)
	require.Len(t, f.sync.tasks, 1)
	assert.Equal(t, recordedTask{taskType: models.SyncTaskUpsert, reservationID: r.ID}, f.sync.tasks[0])
}

func TestCreateReservation_ExactDecimalSum(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	cabin := addCabin(t, f.db, "Babele")
	a := addRoom(t, f.db, cabin.ID, 1, 2, "149.99")
	b := addRoom(t, f.db, cabin.ID, 2, 2, "0.01")
	c := addRoom(t, f.db, cabin.ID, 3, 2, "33.33")

	r, err := f.svc.CreateReservation(context.Background(), traveler, stay(june(1), june(4), 4, a, b, c))
	require.NoError(t, err)
	assert.Equal(t, "549.99", r.TotalPrice.StringFixed(2))
}

func TestCreateReservation_Conflicts(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	ctx := context.Background()

	cabin := addCabin(t, f.db, "Babele")
	room := addRoom(t, f.db, cabin.ID, 1, 2, "100")

	first, err := f.svc.CreateReservation(ctx, traveler, stay(june(1), june(4), 2, room))
	require.NoError(t, err)

	_, err = f.svc.CreateReservation(ctx, stranger, stay(june(3), june(5), 2, room))
	require.ErrorIs(t, err, domain.ErrBookingConflict)

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, first.ID, conflict.Conflicts[0].ReservationID)
	assert.Equal(t, []int64{room.ID}, conflict.Conflicts[0].RoomIDs)

	// a failed create leaves nothing behind and announces nothing
	mine, err := f.svc.ListUserReservations(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Len(t, f.events, 1)
	assert.Len(t, f.sync.tasks, 1)

	// back-to-back stays share only the turnover day
	_, err = f.svc.CreateReservation(ctx, stranger, stay(june(4), june(6), 2, room))
	assert.NoError(t, err)
}

func TestCreateReservation_ValidationOrder(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	ctx := context.Background()

	cabinA := addCabin(t, f.db, "Babele")
	cabinB := addCabin(t, f.db, "Omu")
	a1 := addRoom(t, f.db, cabinA.ID, 1, 2, "100")
	b1 := addRoom(t, f.db, cabinB.ID, 1, 2, "100")

	tests := []struct {
		name  string
		input domain.ReservationInput
		want  error
	}{
		{"NoRooms", domain.ReservationInput{CheckIn: june(1), CheckOut: june(2), GuestCount: 1}, domain.ErrInvalidInput},
		{"MissingCheckIn", domain.ReservationInput{CheckOut: june(4), GuestCount: 1, RoomIDs: []int64{a1.ID}}, domain.ErrInvalidDateRange},
		{"MissingCheckOut", domain.ReservationInput{CheckIn: june(1), GuestCount: 1, RoomIDs: []int64{a1.ID}}, domain.ErrInvalidDateRange},
		{"MissingDatesBeforeRooms", domain.ReservationInput{GuestCount: 1, RoomIDs: []int64{5000}}, domain.ErrInvalidDateRange},
		{"NoGuests", domain.ReservationInput{CheckIn: june(1), CheckOut: june(2), RoomIDs: []int64{a1.ID}}, domain.ErrInvalidInput},
		{"UnknownRoom", domain.ReservationInput{CheckIn: june(1), CheckOut: june(2), GuestCount: 1, RoomIDs: []int64{a1.ID, 5000}}, domain.ErrRoomNotFound},
		{"CrossCabin", stay(june(1), june(3), 2, a1, b1), domain.ErrCrossCabinBooking},
		{"CrossCabinBeforeDates", stay(june(3), june(3), 2, a1, b1), domain.ErrCrossCabinBooking},
		{"SameDay", stay(june(3), june(3), 2, a1), domain.ErrInvalidStayInterval},
		{"Reversed", stay(june(5), june(3), 2, a1), domain.ErrInvalidStayInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(ctx, traveler, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	all, err := f.db.ListReservations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateReservation_DuplicateRoomIDs(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	cabin := addCabin(t, f.db, "Babele")
	room := addRoom(t, f.db, cabin.ID, 1, 2, "100")

	in := stay(june(1), june(2), 1, room)
	in.RoomIDs = append(in.RoomIDs, room.ID)

	r, err := f.svc.CreateReservation(context.Background(), traveler, in)
	require.NoError(t, err)
	assert.Len(t, r.Rooms, 1)
	assert.Equal(t, "100", r.TotalPrice.String())
}

func TestCreateReservation_Capacity(t *testing.T) {
	ctx := context.Background()

	relaxed := newBookingFixture(t, config.BookingConfig{}, nil)
	cabin := addCabin(t, relaxed.db, "Babele")
	small := addRoom(t, relaxed.db, cabin.ID, 1, 2, "100")
	_, err := relaxed.svc.CreateReservation(ctx, traveler, stay(june(1), june(2), 5, small))
	assert.NoError(t, err, "capacity is not enforced by default")

	strict := newBookingFixture(t, config.BookingConfig{EnforceCapacity: true}, nil)
	cabin = addCabin(t, strict.db, "Babele")
	small = addRoom(t, strict.db, cabin.ID, 1, 2, "100")
	big := addRoom(t, strict.db, cabin.ID, 2, 3, "100")

	_, err = strict.svc.CreateReservation(ctx, traveler, stay(june(1), june(2), 6, small, big))
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	_, err = strict.svc.CreateReservation(ctx, traveler, stay(june(1), june(2), 5, small, big))
	assert.NoError(t, err)
}

func TestCreateReservation_WriteLimit(t *testing.T) {
	cfg := config.BookingConfig{WriteLimit: 3}

	denied := &fakeLimiter{allowed: false}
	f := newBookingFixture(t, cfg, denied)
	cabin := addCabin(t, f.db, "Babele")
	room := addRoom(t, f.db, cabin.ID, 1, 2, "100")

	_, err := f.svc.CreateReservation(context.Background(), traveler, stay(june(1), june(2), 1, room))
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, []string{"ratelimit:write:7"}, denied.keys)

	broken := &fakeLimiter{err: errors.New("redis down")}
	f = newBookingFixture(t, cfg, broken)
	cabin = addCabin(t, f.db, "Babele")
	room = addRoom(t, f.db, cabin.ID, 1, 2, "100")
	_, err = f.svc.CreateReservation(context.Background(), traveler, stay(june(1), june(2), 1, room))
	assert.NoError(t, err, "limit store failures fail open")
}

func TestCheckAvailability(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	ctx := context.Background()

	cabin := addCabin(t, f.db, "Babele")
	double := addRoom(t, f.db, cabin.ID, 1, 2, "100")
	quad := addRoom(t, f.db, cabin.ID, 2, 4, "180")
	other := addCabin(t, f.db, "Omu")
	foreign := addRoom(t, f.db, other.ID, 1, 6, "90")

	_, err := f.svc.CreateReservation(ctx, traveler, stay(june(1), june(4), 2, double))
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, traveler, stay(june(1), june(4), 2, foreign))
	require.NoError(t, err)

	free, err := f.svc.CheckAvailability(ctx, cabin.ID, june(3), june(5), 0)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, quad.ID, free[0].ID)

	again, err := f.svc.CheckAvailability(ctx, cabin.ID, june(3), june(5), 0)
	require.NoError(t, err)
	assert.Equal(t, free, again, "availability is a pure read")

	free, err = f.svc.CheckAvailability(ctx, cabin.ID, june(4), june(6), 3)
	require.NoError(t, err)
	require.Len(t, free, 1, "capacity filter drops the double")
	assert.Equal(t, quad.ID, free[0].ID)

	free, err = f.svc.CheckAvailability(ctx, cabin.ID, june(4), june(6), 0)
	require.NoError(t, err)
	assert.Len(t, free, 2)

	_, err = f.svc.CheckAvailability(ctx, cabin.ID, june(5), june(5), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
	_, err = f.svc.CheckAvailability(ctx, cabin.ID, models.Date{}, june(5), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestSearchCabins(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	ctx := context.Background()

	busy := addCabin(t, f.db, "Babele")
	only := addRoom(t, f.db, busy.ID, 1, 2, "100")
	open := addCabin(t, f.db, "Omu")
	addRoom(t, f.db, open.ID, 1, 2, "100")
	addRoom(t, f.db, open.ID, 2, 6, "200")

	_, err := f.svc.CreateReservation(ctx, traveler, stay(june(1), june(4), 2, only))
	require.NoError(t, err)

	result, err := f.svc.SearchCabins(ctx, june(2), june(3), "bucegi", 4)
	require.NoError(t, err)
	require.Len(t, result, 2)

	byName := map[string]*models.CabinAvailability{}
	for _, r := range result {
		byName[r.Cabin.Name] = r
	}
	assert.True(t, byName["Babele"].Occupied)
	assert.Empty(t, byName["Babele"].AvailableRooms)
	assert.False(t, byName["Omu"].Occupied)
	require.Len(t, byName["Omu"].AvailableRooms, 1)
	assert.Equal(t, 6, byName["Omu"].AvailableRooms[0].Capacity)

	none, err := f.svc.SearchCabins(ctx, june(2), june(3), "fagaras", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.SearchCabins(ctx, june(3), june(2), "", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestUpdateReservation(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	ctx := context.Background()

	cabin := addCabin(t, f.db, "Babele")
	r1 := addRoom(t, f.db, cabin.ID, 1, 2, "100")
	r2 := addRoom(t, f.db, cabin.ID, 2, 4, "250")
	other := addCabin(t, f.db, "Omu")
	foreign := addRoom(t, f.db, other.ID, 1, 2, "100")

	mine, err := f.svc.CreateReservation(ctx, traveler, stay(june(1), june(4), 2, r1))
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, stranger, stay(june(10), june(12), 2, r2))
	require.NoError(t, err)

	t.Run("ExtendOverOwnNights", func(t *testing.T) {
		updated, err := f.svc.UpdateReservation(ctx, traveler, mine.ID, stay(june(2), june(6), 2, r1))
		require.NoError(t, err)
		assert.Equal(t, "400", updated.TotalPrice.String())
		assert.Equal(t, "2025-06-02", updated.CheckIn.String())
	})

	t.Run("ReplaceRoomSet", func(t *testing.T) {
		updated, err := f.svc.UpdateReservation(ctx, traveler, mine.ID, stay(june(2), june(4), 3, r1, r2))
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{r1.ID, r2.ID}, updated.RoomIDs())
		assert.Equal(t, "700", updated.TotalPrice.String())
	})

	t.Run("ConflictWithOthers", func(t *testing.T) {
		_, err := f.svc.UpdateReservation(ctx, traveler, mine.ID, stay(june(9), june(11), 2, r2))
		assert.ErrorIs(t, err, domain.ErrBookingConflict)
	})

	t.Run("CrossCabin", func(t *testing.T) {
		_, err := f.svc.UpdateReservation(ctx, traveler, mine.ID, stay(june(2), june(4), 2, r1, foreign))
		assert.ErrorIs(t, err, domain.ErrCrossCabinBooking)
	})

	t.Run("NotOwner", func(t *testing.T) {
		_, err := f.svc.UpdateReservation(ctx, stranger, mine.ID, stay(june(20), june(21), 2, r1))
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = f.svc.UpdateReservation(ctx, admin, mine.ID, stay(june(20), june(21), 2, r1))
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := f.svc.UpdateReservation(ctx, traveler, 4040, stay(june(20), june(21), 2, r1))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	got, err := f.svc.GetReservation(ctx, traveler, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "700", got.TotalPrice.String(), "failed updates leave the last good state")
	assert.Contains(t, f.events, events.EventReservationUpdated)
}

func TestCancelReservation(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	ctx := context.Background()

	cabin := addCabin(t, f.db, "Babele")
	room := addRoom(t, f.db, cabin.ID, 1, 2, "100")
	mine, err := f.svc.CreateReservation(ctx, traveler, stay(june(1), june(4), 2, room))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.CancelReservation(ctx, stranger, mine.ID), domain.ErrForbidden)
	assert.ErrorIs(t, f.svc.CancelReservation(ctx, traveler, 4040), domain.ErrNotFound)

	require.NoError(t, f.svc.CancelReservation(ctx, traveler, mine.ID))
	_, err = f.svc.GetReservation(ctx, traveler, mine.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	free, err := f.svc.CheckAvailability(ctx, cabin.ID, june(1), june(4), 0)
	require.NoError(t, err)
	assert.Len(t, free, 1, "cancelled rooms are free again")

	assert.Equal(t, events.EventReservationCancelled, f.events[len(f.events)-1])
	assert.Equal(t, recordedTask{taskType: models.SyncTaskDelete, reservationID: mine.ID}, f.sync.tasks[len(f.sync.tasks)-1])
}

func TestReservationReads(t *testing.T) {
	f := newBookingFixture(t, config.BookingConfig{}, nil)
	ctx := context.Background()

	cabin := addCabin(t, f.db, "Babele")
	room := addRoom(t, f.db, cabin.ID, 1, 2, "100")
	later, err := f.svc.CreateReservation(ctx, traveler, stay(june(10), june(12), 2, room))
	require.NoError(t, err)
	earlier, err := f.svc.CreateReservation(ctx, traveler, stay(june(1), june(3), 2, room))
	require.NoError(t, err)

	_, err = f.svc.GetReservation(ctx, stranger, later.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	mine, err := f.svc.ListUserReservations(ctx, traveler)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, earlier.ID, mine[0].ID)

	_, _, err = f.svc.ListCabinReservations(ctx, stranger, cabin.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	gotCabin, list, err := f.svc.ListCabinReservations(ctx, owner, cabin.ID)
	require.NoError(t, err)
	assert.Equal(t, cabin.ID, gotCabin.ID)
	assert.Len(t, list, 2)

	_, err = f.svc.ListAllReservations(ctx, owner)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	all, err := f.svc.ListAllReservations(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// repoMock overrides only the calls a test expects; anything else panics.
type repoMock struct {
	mock.Mock
	domain.Repository
}

func (m *repoMock) GetRoomsByIDs(ctx context.Context, ids []int64) ([]*models.Room, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Room), args.Error(1)
}

func (m *repoMock) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func TestCreateReservation_StorageFailure(t *testing.T) {
	repo := new(repoMock)
	sync := &fakeSyncWorker{}
	logger := zerolog.Nop()
	svc := NewBookingService(repo, nil, sync, nil, config.BookingConfig{}, &logger)

	room := &models.Room{ID: 1, CabinID: 1, Capacity: 2}
	repo.On("GetRoomsByIDs", mock.Anything, []int64{1}).Return([]*models.Room{room}, nil)
	storageErr := errors.New("disk I/O error")
	repo.On("CreateReservationWithLock", mock.Anything, mock.MatchedBy(func(r *models.Reservation) bool {
		return r.UserID == traveler.UserID && r.Nights() == 2
	})).Return(storageErr)

	_, err := svc.CreateReservation(context.Background(), traveler, domain.ReservationInput{
		CheckIn: june(1), CheckOut: june(3), GuestCount: 1, RoomIDs: []int64{1},
	})
	assert.ErrorIs(t, err, storageErr)
	assert.Empty(t, sync.tasks)
	repo.AssertExpectations(t)
}
