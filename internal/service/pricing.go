package service

import (
	"github.com/adiselav/CabanApp/internal/models"

	"github.com/shopspring/decimal"
)

// Nights is the calendar-day difference between check-in and check-out.
func Nights(checkIn, checkOut models.Date) int {
	return checkIn.DaysUntil(checkOut)
}

// TotalPrice sums the nightly prices of rooms and multiplies by nights, exactly.
func TotalPrice(rooms []*models.Room, nights int) decimal.Decimal {
	perNight := decimal.Zero
	for _, room := range rooms {
		perNight = perNight.Add(room.PricePerNight)
	}
	return perNight.Mul(decimal.NewFromInt(int64(nights)))
}

// TotalCapacity is the number of guests the rooms can host together.
func TotalCapacity(rooms []*models.Room) int {
	total := 0
	for _, room := range rooms {
		total += room.Capacity
	}
	return total
}
