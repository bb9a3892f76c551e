package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/adiselav/CabanApp/internal/config"
	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/events"
	"github.com/adiselav/CabanApp/internal/metrics"
	"github.com/adiselav/CabanApp/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BookingService decides availability, prices stays and guards reservation
// ownership. Conflict detection and persistence are atomic in the repository.
type BookingService struct {
	repo         domain.Repository
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	limiter      domain.RateLimitStore
	validate     *validator.Validate
	cfg          config.BookingConfig
	logger       *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	limiter domain.RateLimitStore,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:         repo,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		limiter:      limiter,
		validate:     NewValidator(),
		cfg:          cfg,
		logger:       logger,
	}
}

func validateRange(checkIn, checkOut models.Date) error {
	if checkIn.IsZero() || checkOut.IsZero() || !checkIn.Before(checkOut) {
		return domain.ErrInvalidDateRange
	}
	return nil
}

// CheckAvailability lists rooms of the cabin not held by any reservation that
// overlaps [checkIn, checkOut) and hosting at least minCapacity guests.
func (s *BookingService) CheckAvailability(
	ctx context.Context,
	cabinID int64,
	checkIn, checkOut models.Date,
	minCapacity int,
) ([]*models.Room, error) {
	if err := validateRange(checkIn, checkOut); err != nil {
		return nil, err
	}

	reserved, err := s.repo.ReservedRoomIDs(ctx, checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	rooms, err := s.repo.ListRooms(ctx, cabinID)
	if err != nil {
		return nil, err
	}
	return freeRooms(rooms, reserved, minCapacity), nil
}

// SearchCabins reports every cabin matching location with its free rooms for the interval.
func (s *BookingService) SearchCabins(
	ctx context.Context,
	checkIn, checkOut models.Date,
	location string,
	guests int,
) ([]*models.CabinAvailability, error) {
	if err := validateRange(checkIn, checkOut); err != nil {
		return nil, err
	}

	reserved, err := s.repo.ReservedRoomIDs(ctx, checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	cabins, err := s.repo.ListCabins(ctx, location)
	if err != nil {
		return nil, err
	}

	result := make([]*models.CabinAvailability, 0, len(cabins))
	for _, cabin := range cabins {
		rooms, err := s.repo.ListRooms(ctx, cabin.ID)
		if err != nil {
			return nil, err
		}
		free := freeRooms(rooms, reserved, guests)
		result = append(result, &models.CabinAvailability{
			Cabin:          cabin,
			AvailableRooms: free,
			Occupied:       len(free) == 0,
		})
	}
	return result, nil
}

func freeRooms(rooms []*models.Room, reserved map[int64]struct{}, minCapacity int) []*models.Room {
	free := make([]*models.Room, 0, len(rooms))
	for _, room := range rooms {
		if _, taken := reserved[room.ID]; taken {
			continue
		}
		if room.Capacity < minCapacity {
			continue
		}
		free = append(free, room)
	}
	return free
}

func (s *BookingService) CreateReservation(
	ctx context.Context,
	caller models.Identity,
	in domain.ReservationInput,
) (*models.Reservation, error) {
	if err := validateInput(s.validate, in); err != nil {
		metrics.IncReservation(metrics.OutcomeRejected)
		return nil, err
	}
	if err := s.checkWriteLimit(ctx, caller); err != nil {
		return nil, err
	}

	reservation, err := s.prepare(ctx, in)
	if err != nil {
		metrics.IncReservation(metrics.OutcomeRejected)
		return nil, err
	}
	reservation.UserID = caller.UserID

	if err := s.repo.CreateReservationWithLock(ctx, reservation); err != nil {
		s.countFailure(err)
		return nil, err
	}

	created, err := s.repo.GetReservation(ctx, reservation.ID)
	if err != nil {
		return nil, err
	}

	metrics.IncReservation(metrics.OutcomeCreated)
	s.logger.Info().
		Int64("reservation_id", created.ID).
		Int64("user_id", caller.UserID).
		Str("check_in", created.CheckIn.String()).
		Str("check_out", created.CheckOut.String()).
		Str("total_price", created.TotalPrice.String()).
		Msg("Reservation created")

	s.publishEvent(events.EventReservationCreated, created, caller.UserID)
	s.enqueueSync(ctx, created, models.SyncTaskUpsert)
	return created, nil
}

// UpdateReservation re-runs the create pipeline for an owned reservation and
// replaces its room set. The reservation is excluded from its own conflict check.
func (s *BookingService) UpdateReservation(
	ctx context.Context,
	caller models.Identity,
	id int64,
	in domain.ReservationInput,
) (*models.Reservation, error) {
	existing, err := s.ownedReservation(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(s.validate, in); err != nil {
		metrics.IncReservation(metrics.OutcomeRejected)
		return nil, err
	}
	if err := s.checkWriteLimit(ctx, caller); err != nil {
		return nil, err
	}

	reservation, err := s.prepare(ctx, in)
	if err != nil {
		metrics.IncReservation(metrics.OutcomeRejected)
		return nil, err
	}
	reservation.ID = existing.ID
	reservation.UserID = existing.UserID

	if err := s.repo.UpdateReservationWithLock(ctx, reservation); err != nil {
		s.countFailure(err)
		return nil, err
	}

	updated, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncReservation(metrics.OutcomeUpdated)
	s.logger.Info().Int64("reservation_id", id).Int64("user_id", caller.UserID).Msg("Reservation updated")

	s.publishEvent(events.EventReservationUpdated, updated, caller.UserID)
	s.enqueueSync(ctx, updated, models.SyncTaskUpsert)
	return updated, nil
}

// CancelReservation deletes an owned reservation immediately.
func (s *BookingService) CancelReservation(ctx context.Context, caller models.Identity, id int64) error {
	existing, err := s.ownedReservation(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteReservation(ctx, id); err != nil {
		return err
	}

	metrics.IncReservation(metrics.OutcomeCancelled)
	s.logger.Info().Int64("reservation_id", id).Int64("user_id", caller.UserID).Msg("Reservation cancelled")

	s.publishEvent(events.EventReservationCancelled, existing, caller.UserID)
	s.enqueueSync(ctx, existing, models.SyncTaskDelete)
	return nil
}

func (s *BookingService) GetReservation(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error) {
	return s.ownedReservation(ctx, caller, id)
}

func (s *BookingService) ListUserReservations(ctx context.Context, caller models.Identity) ([]*models.Reservation, error) {
	return s.repo.ListUserReservations(ctx, caller.UserID)
}

// ListCabinReservations is restricted to the cabin owner and administrators.
func (s *BookingService) ListCabinReservations(
	ctx context.Context,
	caller models.Identity,
	cabinID int64,
) (*models.Cabin, []*models.Reservation, error) {
	cabin, err := s.repo.GetCabin(ctx, cabinID)
	if err != nil {
		return nil, nil, err
	}
	if !caller.CanManage(cabin.OwnerID) {
		return nil, nil, domain.ErrForbidden
	}

	reservations, err := s.repo.ListCabinReservations(ctx, cabinID)
	if err != nil {
		return nil, nil, err
	}
	return cabin, reservations, nil
}

func (s *BookingService) ListAllReservations(ctx context.Context, caller models.Identity) ([]*models.Reservation, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListReservations(ctx)
}

func (s *BookingService) ownedReservation(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error) {
	reservation, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.UserID != caller.UserID {
		return nil, domain.ErrForbidden
	}
	return reservation, nil
}

// prepare resolves rooms, checks they share a cabin, counts nights and prices the stay.
func (s *BookingService) prepare(ctx context.Context, in domain.ReservationInput) (*models.Reservation, error) {
	if in.CheckIn.IsZero() || in.CheckOut.IsZero() {
		return nil, domain.ErrInvalidDateRange
	}
	roomIDs := uniqueIDs(in.RoomIDs)

	rooms, err := s.repo.GetRoomsByIDs(ctx, roomIDs)
	if err != nil {
		return nil, err
	}
	if len(rooms) != len(roomIDs) {
		return nil, fmt.Errorf("%w: %d", domain.ErrRoomNotFound, firstMissing(roomIDs, rooms))
	}

	cabinID := rooms[0].CabinID
	for _, room := range rooms[1:] {
		if room.CabinID != cabinID {
			return nil, domain.ErrCrossCabinBooking
		}
	}

	nights := Nights(in.CheckIn, in.CheckOut)
	if nights <= 0 {
		return nil, domain.ErrInvalidStayInterval
	}

	if s.cfg.EnforceCapacity && TotalCapacity(rooms) < in.GuestCount {
		return nil, fmt.Errorf("%w: %d beds for %d guests", domain.ErrCapacityExceeded, TotalCapacity(rooms), in.GuestCount)
	}

	return &models.Reservation{
		CheckIn:    in.CheckIn,
		CheckOut:   in.CheckOut,
		GuestCount: in.GuestCount,
		TotalPrice: TotalPrice(rooms, nights),
		Rooms:      rooms,
	}, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func firstMissing(ids []int64, rooms []*models.Room) int64 {
	found := make(map[int64]struct{}, len(rooms))
	for _, room := range rooms {
		found[room.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return id
		}
	}
	return 0
}

// checkWriteLimit fails open when the limit store is unavailable.
func (s *BookingService) checkWriteLimit(ctx context.Context, caller models.Identity) error {
	if s.limiter == nil || s.cfg.WriteLimit <= 0 {
		return nil
	}
	key := models.WriteLimitKeyPrefix + ":" + strconv.FormatInt(caller.UserID, 10)
	allowed, err := s.limiter.CheckRateLimit(ctx, key, s.cfg.WriteLimit, s.cfg.WriteWindow)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", caller.UserID).Msg("write limit check failed")
		return nil
	}
	if !allowed {
		metrics.IncReservation(metrics.OutcomeRejected)
		return domain.ErrRateLimited
	}
	return nil
}

func (s *BookingService) countFailure(err error) {
	if errors.Is(err, domain.ErrBookingConflict) {
		metrics.IncReservation(metrics.OutcomeConflict)
		return
	}
	metrics.IncReservation(metrics.OutcomeRejected)
}

func (s *BookingService) publishEvent(eventType string, r *models.Reservation, changedByID int64) {
	publishReservationEvent(s.eventBus, s.logger, eventType, r, changedByID)
}

func (s *BookingService) enqueueSync(ctx context.Context, r *models.Reservation, taskType string) {
	enqueueReservationSync(ctx, s.sheetsWorker, s.logger, r, taskType)
}

func publishReservationEvent(
	bus domain.EventPublisher,
	logger *zerolog.Logger,
	eventType string,
	r *models.Reservation,
	changedByID int64,
) {
	if bus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		UserID:        r.UserID,
		CheckIn:       r.CheckIn.String(),
		CheckOut:      r.CheckOut.String(),
		GuestCount:    r.GuestCount,
		TotalPrice:    r.TotalPrice.String(),
		ChangedByID:   changedByID,
	}
	if r.Cabin != nil {
		payload.CabinID = r.Cabin.ID
		payload.CabinName = r.Cabin.Name
	}
	for _, room := range r.Rooms {
		payload.RoomNumbers = append(payload.RoomNumbers, room.Number)
	}

	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}

func enqueueReservationSync(
	ctx context.Context,
	worker domain.SyncWorker,
	logger *zerolog.Logger,
	r *models.Reservation,
	taskType string,
) {
	if worker == nil {
		return
	}
	if err := worker.EnqueueTask(ctx, taskType, r.ID, r); err != nil {
		logger.Error().Err(err).Int64("reservation_id", r.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
