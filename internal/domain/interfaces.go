package domain

import (
	"context"
	"time"

	"github.com/adiselav/CabanApp/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CatalogRepository persists cabins and their rooms.
type CatalogRepository interface {
	CreateCabin(ctx context.Context, cabin *models.Cabin) error
	GetCabin(ctx context.Context, id int64) (*models.Cabin, error)
	ListCabins(ctx context.Context, location string) ([]*models.Cabin, error)
	UpdateCabin(ctx context.Context, cabin *models.Cabin) error
	DeleteCabin(ctx context.Context, id int64) ([]*models.Reservation, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetRoomsByIDs(ctx context.Context, ids []int64) ([]*models.Room, error)
	ListRooms(ctx context.Context, cabinID int64) ([]*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, id int64) ([]*models.Reservation, error)
}

// ReservationRepository persists reservations. Create and Update run the
// conflict check and the write in one serialized transaction.
type ReservationRepository interface {
	ReservedRoomIDs(ctx context.Context, checkIn, checkOut models.Date) (map[int64]struct{}, error)
	CreateReservationWithLock(ctx context.Context, r *models.Reservation) error
	UpdateReservationWithLock(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ListUserReservations(ctx context.Context, userID int64) ([]*models.Reservation, error)
	ListCabinReservations(ctx context.Context, cabinID int64) ([]*models.Reservation, error)
	ListReservations(ctx context.Context) ([]*models.Reservation, error)
	DeleteReservation(ctx context.Context, id int64) error
}

// ReviewRepository persists reviews. Every mutation recomputes the cabin
// score average inside its own transaction.
type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review, onePerUser bool) error
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	UpdateReview(ctx context.Context, review *models.Review) error
	DeleteReview(ctx context.Context, id int64) error
	ListCabinReviews(ctx context.Context, cabinID int64) ([]*models.Review, error)
	RecomputeScore(ctx context.Context, cabinID int64) (float64, error)
}

type Repository interface {
	CatalogRepository
	ReservationRepository
	ReviewRepository
}

// RateLimitStore counts hits per key inside a fixed window.
type RateLimitStore interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SheetsWriter mirrors reservations into a spreadsheet.
type SheetsWriter interface {
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservationRow(ctx context.Context, reservationID int64) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, reservationID int64, r *models.Reservation) error
}

type BookingService interface {
	CheckAvailability(ctx context.Context, cabinID int64, checkIn, checkOut models.Date, minCapacity int) ([]*models.Room, error)
	SearchCabins(ctx context.Context, checkIn, checkOut models.Date, location string, guests int) ([]*models.CabinAvailability, error)
	CreateReservation(ctx context.Context, caller models.Identity, in ReservationInput) (*models.Reservation, error)
	UpdateReservation(ctx context.Context, caller models.Identity, id int64, in ReservationInput) (*models.Reservation, error)
	CancelReservation(ctx context.Context, caller models.Identity, id int64) error
	GetReservation(ctx context.Context, caller models.Identity, id int64) (*models.Reservation, error)
	ListUserReservations(ctx context.Context, caller models.Identity) ([]*models.Reservation, error)
	ListCabinReservations(ctx context.Context, caller models.Identity, cabinID int64) (*models.Cabin, []*models.Reservation, error)
	ListAllReservations(ctx context.Context, caller models.Identity) ([]*models.Reservation, error)
}

type CatalogService interface {
	ListCabins(ctx context.Context, location string) ([]*models.Cabin, error)
	GetCabin(ctx context.Context, id int64) (*models.Cabin, error)
	CreateCabin(ctx context.Context, caller models.Identity, in CabinInput) (*models.Cabin, error)
	UpdateCabin(ctx context.Context, caller models.Identity, id int64, in CabinInput) (*models.Cabin, error)
	DeleteCabin(ctx context.Context, caller models.Identity, id int64) error
	ListRooms(ctx context.Context, cabinID int64) ([]*models.Room, error)
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	CreateRoom(ctx context.Context, caller models.Identity, cabinID int64, in RoomInput) (*models.Room, error)
	UpdateRoom(ctx context.Context, caller models.Identity, id int64, in RoomInput) (*models.Room, error)
	DeleteRoom(ctx context.Context, caller models.Identity, id int64) error
}

type ReviewService interface {
	CreateReview(ctx context.Context, caller models.Identity, in ReviewInput) (*models.Review, error)
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	UpdateReview(ctx context.Context, caller models.Identity, id int64, in ReviewUpdateInput) (*models.Review, error)
	DeleteReview(ctx context.Context, caller models.Identity, id int64) error
	ListCabinReviews(ctx context.Context, cabinID int64) ([]*models.Review, error)
}
