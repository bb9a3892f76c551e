package domain

import "github.com/adiselav/CabanApp/internal/models"

// ReservationInput is the validated body of a create or update reservation call.
type ReservationInput struct {
	CheckIn    models.Date `json:"check_in"`
	CheckOut   models.Date `json:"check_out"`
	GuestCount int         `json:"guest_count" validate:"required,min=1"`
	RoomIDs    []int64     `json:"room_ids" validate:"required,min=1,dive,gt=0"`
}

type CabinInput struct {
	Name           string `json:"name" validate:"required,min=2,max=255"`
	Location       string `json:"location" validate:"required,max=255"`
	Altitude       int    `json:"altitude" validate:"gte=0,lte=9000"`
	ContactEmail   string `json:"contact_email" validate:"required,email"`
	ContactPhone   string `json:"contact_phone" validate:"required,ro_phone"`
	Description    string `json:"description" validate:"max=4000"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

type RoomInput struct {
	Number        int    `json:"number" validate:"required,min=1"`
	Capacity      int    `json:"capacity" validate:"required,min=1,max=50"`
	PricePerNight string `json:"price_per_night" validate:"required,money"`
	Description   string `json:"description" validate:"max=2000"`
}

type ReviewInput struct {
	CabinID int64  `json:"cabin_id" validate:"required,gt=0"`
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type ReviewUpdateInput struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}
