package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/models"
)

const reviewColumns = `id, cabin_id, user_id, score, comment, created_at, updated_at`

func scanReview(row rowScanner) (*models.Review, error) {
	r := &models.Review{}
	if err := row.Scan(&r.ID, &r.CabinID, &r.UserID, &r.Score, &r.Comment, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateReview inserts the review and refreshes the cabin average in one transaction.
// With onePerUser set, a second review by the same user for the same cabin fails
// with domain.ErrDuplicateReview.
func (db *DB) CreateReview(ctx context.Context, review *models.Review, onePerUser bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if onePerUser {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM reviews WHERE cabin_id = ? AND user_id = ?)`,
			review.CabinID, review.UserID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check existing review: %w", err)
		}
		if exists {
			return domain.ErrDuplicateReview
		}
	}

	ts := now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reviews (cabin_id, user_id, score, comment, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		review.CabinID, review.UserID, review.Score, review.Comment, ts, ts,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if _, err := recomputeScore(ctx, tx, review.CabinID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}

	review.ID = id
	review.CreatedAt = ts
	review.UpdatedAt = ts
	return nil
}

func (db *DB) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	review, err := scanReview(db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// UpdateReview changes score and comment and refreshes the cabin average.
func (db *DB) UpdateReview(ctx context.Context, review *models.Review) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cabinID, err := reviewCabin(ctx, tx, review.ID)
	if err != nil {
		return err
	}

	ts := now()
	_, err = tx.ExecContext(ctx,
		`UPDATE reviews SET score = ?, comment = ?, updated_at = ? WHERE id = ?`,
		review.Score, review.Comment, ts, review.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}

	if _, err := recomputeScore(ctx, tx, cabinID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review update: %w", err)
	}
	review.CabinID = cabinID
	review.UpdatedAt = ts
	return nil
}

// DeleteReview removes the review and refreshes the cabin average.
func (db *DB) DeleteReview(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	cabinID, err := reviewCabin(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if _, err := recomputeScore(ctx, tx, cabinID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListCabinReviews returns the cabin's reviews, newest first.
func (db *DB) ListCabinReviews(ctx context.Context, cabinID int64) ([]*models.Review, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE cabin_id = ? ORDER BY created_at DESC, id DESC`, cabinID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*models.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// RecomputeScore rewrites the cabin's score average from its current reviews.
func (db *DB) RecomputeScore(ctx context.Context, cabinID int64) (float64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	avg, err := recomputeScore(ctx, tx, cabinID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit score: %w", err)
	}
	return avg, nil
}

func reviewCabin(ctx context.Context, q querier, reviewID int64) (int64, error) {
	var cabinID int64
	err := q.QueryRowContext(ctx, `SELECT cabin_id FROM reviews WHERE id = ?`, reviewID).Scan(&cabinID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load review: %w", err)
	}
	return cabinID, nil
}

// recomputeScore sets score_average to the mean of the cabin's review scores, 0 when none.
func recomputeScore(ctx context.Context, q querier, cabinID int64) (float64, error) {
	var avg float64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(score), 0) FROM reviews WHERE cabin_id = ?`, cabinID,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute score average: %w", err)
	}

	result, err := q.ExecContext(ctx,
		`UPDATE cabins SET score_average = ?, updated_at = ? WHERE id = ?`, avg, now(), cabinID)
	if err != nil {
		return 0, fmt.Errorf("failed to store score average: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, domain.ErrNotFound
	}
	return avg, nil
}
