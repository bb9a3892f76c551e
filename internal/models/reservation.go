package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Reservation struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	CheckIn    Date            `json:"check_in"`
	CheckOut   Date            `json:"check_out"`
	GuestCount int             `json:"guest_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Rooms      []*Room         `json:"rooms"`
	Cabin      *Cabin          `json:"cabin,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Nights is the number of calendar nights of the stay.
func (r *Reservation) Nights() int {
	return r.CheckIn.DaysUntil(r.CheckOut)
}

func (r *Reservation) RoomIDs() []int64 {
	ids := make([]int64, 0, len(r.Rooms))
	for _, room := range r.Rooms {
		ids = append(ids, room.ID)
	}
	return ids
}

// ConflictSummary describes an existing reservation that blocks a requested stay.
type ConflictSummary struct {
	ReservationID int64   `json:"reservation_id"`
	CheckIn       Date    `json:"check_in"`
	CheckOut      Date    `json:"check_out"`
	RoomIDs       []int64 `json:"room_ids"`
}
