package models

import "time"

const (
	MinReviewScore = 1
	MaxReviewScore = 5
)

type Review struct {
	ID        int64     `json:"id"`
	CabinID   int64     `json:"cabin_id"`
	UserID    int64     `json:"user_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
