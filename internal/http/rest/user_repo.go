package rest

import (
	"context"
	"errors"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrPointsAlreadyAwarded = errors.New("points already awarded")
)

func (api *API) GetUserByIDRepo(ctx context.Context, id uuid.UUID) (model.User, error) {
	var user model.User
	stmt := `SELECT id, username, email, role, points, created_at, updated_at FROM users WHERE id = $1`

	err := api.DB.QueryRow(ctx, stmt, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.Points,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// AwardReportPointsRepo records the award in the ledger and credits the
// user in one transaction. ErrPointsAlreadyAwarded means awardedBy already
// earned this reward for the report.
func (api *API) AwardReportPointsRepo(ctx context.Context, awardedBy uuid.UUID, req model.AwardPointsRequest, reason string) (int, error) {
	var points int
	err := api.Deps.DB.RunInTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            INSERT INTO point_awards (report_id, awarded_by, reason, user_id, delta)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT DO NOTHING`,
			*req.ReportID, awardedBy, reason, req.UserID, req.Delta)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrPointsAlreadyAwarded
		}

		err = tx.QueryRow(ctx, `
            UPDATE users
            SET points = points + $2, updated_at = NOW()
            WHERE id = $1
            RETURNING points`, req.UserID, req.Delta).Scan(&points)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	})
	return points, err
}

// AwardPointsRepo adds delta to the user's balance and returns the new total.
func (api *API) AwardPointsRepo(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	stmt := `
        UPDATE users
        SET points = points + $2, updated_at = NOW()
        WHERE id = $1
        RETURNING points
    `
	var points int
	err := api.DB.QueryRow(ctx, stmt, userID, delta).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return points, err
}
