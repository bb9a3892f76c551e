package service

import (
	"context"
	"strings"

	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/events"
	"github.com/adiselav/CabanApp/internal/metrics"
	"github.com/adiselav/CabanApp/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// CatalogService manages cabins and rooms. Mutations are limited to the
// owning PROPRIETAR account and administrators.
type CatalogService struct {
	repo         domain.CatalogRepository
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	validate     *validator.Validate
	logger       *zerolog.Logger
}

func NewCatalogService(
	repo domain.CatalogRepository,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *CatalogService {
	return &CatalogService{
		repo:         repo,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		validate:     NewValidator(),
		logger:       logger,
	}
}

func (s *CatalogService) ListCabins(ctx context.Context, location string) ([]*models.Cabin, error) {
	return s.repo.ListCabins(ctx, strings.TrimSpace(location))
}

func (s *CatalogService) GetCabin(ctx context.Context, id int64) (*models.Cabin, error) {
	return s.repo.GetCabin(ctx, id)
}

func (s *CatalogService) CreateCabin(ctx context.Context, caller models.Identity, in domain.CabinInput) (*models.Cabin, error) {
	if caller.Role != models.RoleOwner && caller.Role != models.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}

	cabin := &models.Cabin{OwnerID: caller.UserID}
	applyCabinInput(cabin, in)
	if err := s.repo.CreateCabin(ctx, cabin); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("cabin_id", cabin.ID).Int64("owner_id", cabin.OwnerID).Msg("Cabin created")
	cabin.Rooms = []*models.Room{}
	return cabin, nil
}

func (s *CatalogService) UpdateCabin(ctx context.Context, caller models.Identity, id int64, in domain.CabinInput) (*models.Cabin, error) {
	cabin, err := s.managedCabin(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}

	applyCabinInput(cabin, in)
	if err := s.repo.UpdateCabin(ctx, cabin); err != nil {
		return nil, err
	}
	return s.repo.GetCabin(ctx, id)
}

func (s *CatalogService) DeleteCabin(ctx context.Context, caller models.Identity, id int64) error {
	if _, err := s.managedCabin(ctx, caller, id); err != nil {
		return err
	}
	released, err := s.repo.DeleteCabin(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info().Int64("cabin_id", id).Int64("by", caller.UserID).Int("reservations", len(released)).Msg("Cabin deleted")

	// no cancellation notices: the owner chat is configured on the deleted cabin
	s.releaseReservations(ctx, released, caller, false)
	return nil
}

func (s *CatalogService) ListRooms(ctx context.Context, cabinID int64) ([]*models.Room, error) {
	if _, err := s.repo.GetCabin(ctx, cabinID); err != nil {
		return nil, err
	}
	return s.repo.ListRooms(ctx, cabinID)
}

func (s *CatalogService) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return s.repo.GetRoom(ctx, id)
}

func (s *CatalogService) CreateRoom(ctx context.Context, caller models.Identity, cabinID int64, in domain.RoomInput) (*models.Room, error) {
	if _, err := s.managedCabin(ctx, caller, cabinID); err != nil {
		return nil, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}

	room := &models.Room{CabinID: cabinID}
	if err := applyRoomInput(room, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *CatalogService) UpdateRoom(ctx context.Context, caller models.Identity, id int64, in domain.RoomInput) (*models.Room, error) {
	room, err := s.managedRoom(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}

	if err := applyRoomInput(room, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// DeleteRoom also removes every reservation holding the room.
func (s *CatalogService) DeleteRoom(ctx context.Context, caller models.Identity, id int64) error {
	if _, err := s.managedRoom(ctx, caller, id); err != nil {
		return err
	}
	released, err := s.repo.DeleteRoom(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info().Int64("room_id", id).Int64("by", caller.UserID).Int("reservations", len(released)).Msg("Room deleted")

	s.releaseReservations(ctx, released, caller, true)
	return nil
}

// releaseReservations propagates reservations removed together with a room or
// cabin to the spreadsheet mirror and, when notify is set, to the event bus.
func (s *CatalogService) releaseReservations(ctx context.Context, released []*models.Reservation, caller models.Identity, notify bool) {
	for _, r := range released {
		metrics.IncReservation(metrics.OutcomeCancelled)
		if notify {
			publishReservationEvent(s.eventBus, s.logger, events.EventReservationCancelled, r, caller.UserID)
		}
		enqueueReservationSync(ctx, s.sheetsWorker, s.logger, r, models.SyncTaskDelete)
	}
}

// ImportCatalog creates seed cabins with their rooms, skipping any cabin whose
// name and location already exist. It returns the number of cabins created.
func (s *CatalogService) ImportCatalog(ctx context.Context, cabins []*models.Cabin) (int, error) {
	existing, err := s.repo.ListCabins(ctx, "")
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		known[catalogKey(c)] = struct{}{}
	}

	created := 0
	for _, seed := range cabins {
		if _, ok := known[catalogKey(seed)]; ok {
			continue
		}
		cabin := *seed
		cabin.Rooms = nil
		if err := s.repo.CreateCabin(ctx, &cabin); err != nil {
			return created, err
		}
		for _, seedRoom := range seed.Rooms {
			price, err := ParseMoney(seedRoom.Price)
			if err != nil {
				return created, err
			}
			room := &models.Room{
				CabinID:       cabin.ID,
				Number:        seedRoom.Number,
				Capacity:      seedRoom.Capacity,
				PricePerNight: price,
				Description:   seedRoom.Description,
			}
			if err := s.repo.CreateRoom(ctx, room); err != nil {
				return created, err
			}
		}
		known[catalogKey(seed)] = struct{}{}
		created++
	}
	return created, nil
}

func catalogKey(c *models.Cabin) string {
	return strings.ToLower(c.Name) + "|" + strings.ToLower(c.Location)
}

func (s *CatalogService) managedCabin(ctx context.Context, caller models.Identity, id int64) (*models.Cabin, error) {
	cabin, err := s.repo.GetCabin(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(cabin.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return cabin, nil
}

func (s *CatalogService) managedRoom(ctx context.Context, caller models.Identity, id int64) (*models.Room, error) {
	room, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.managedCabin(ctx, caller, room.CabinID); err != nil {
		return nil, err
	}
	return room, nil
}

func applyCabinInput(cabin *models.Cabin, in domain.CabinInput) {
	cabin.Name = strings.TrimSpace(in.Name)
	cabin.Location = strings.TrimSpace(in.Location)
	cabin.Altitude = in.Altitude
	cabin.ContactEmail = strings.TrimSpace(in.ContactEmail)
	cabin.ContactPhone = strings.TrimSpace(in.ContactPhone)
	cabin.Description = in.Description
	cabin.TelegramChatID = in.TelegramChatID
}

func applyRoomInput(room *models.Room, in domain.RoomInput) error {
	price, err := ParseMoney(in.PricePerNight)
	if err != nil {
		return err
	}
	room.Number = in.Number
	room.Capacity = in.Capacity
	room.PricePerNight = price
	room.Description = in.Description
	return nil
}
