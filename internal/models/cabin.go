package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cabin struct {
	ID           int64     `json:"id" yaml:"id"`
	OwnerID      int64     `json:"owner_id" yaml:"owner_id"`
	Name         string    `json:"name" yaml:"name"`
	Location     string    `json:"location" yaml:"location"`
	Altitude     int       `json:"altitude" yaml:"altitude"`
	ContactEmail string    `json:"contact_email" yaml:"contact_email"`
	ContactPhone string    `json:"contact_phone" yaml:"contact_phone"`
	Description  string    `json:"description" yaml:"description"`
	ScoreAverage float64   `json:"score_average" yaml:"-"`
	ReviewCount  int       `json:"review_count" yaml:"-"`
	Rooms        []*Room   `json:"rooms,omitempty" yaml:"rooms"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`

	// TelegramChatID receives owner notifications; zero disables them.
	TelegramChatID int64 `json:"-" yaml:"telegram_chat_id"`
}

type Room struct {
	ID            int64           `json:"id" yaml:"-"`
	CabinID       int64           `json:"cabin_id" yaml:"-"`
	Number        int             `json:"number" yaml:"number"`
	Capacity      int             `json:"capacity" yaml:"capacity"`
	PricePerNight decimal.Decimal `json:"price_per_night" yaml:"-"`
	Description   string          `json:"description" yaml:"description"`
	CreatedAt     time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time       `json:"updated_at" yaml:"-"`

	// Price is the seed-file spelling of PricePerNight.
	Price string `json:"-" yaml:"price"`
}

// CabinAvailability is a cabin together with the rooms free for a queried interval.
type CabinAvailability struct {
	Cabin          *Cabin  `json:"cabin"`
	AvailableRooms []*Room `json:"available_rooms"`
	Occupied       bool    `json:"occupied"`
}
