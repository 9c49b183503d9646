package rest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrReportNotFound      = errors.New("report not found")
	ErrReportAlreadyActive = errors.New("report is already approved")
)

const reportColumns = `
            id, user_id, title, description, category, severity,
            ST_Y(position) AS latitude, ST_X(position) AS longitude,
            status, image_url, processed_image_urls, created_at, updated_at`

func scanReport(row pgx.Row) (model.Report, error) {
	var report model.Report
	err := row.Scan(
		&report.ID, &report.UserID, &report.Title, &report.Description,
		&report.Category, &report.Severity, &report.Latitude, &report.Longitude,
		&report.Status, &report.ImageURL, &report.ProcessedImageURLs,
		&report.CreatedAt, &report.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Report{}, ErrReportNotFound
	}
	if report.ProcessedImageURLs == nil {
		report.ProcessedImageURLs = []string{}
	}
	return report, err
}

// buildReportListQuery turns the set predicates of q into a WHERE clause.
// Results are newest first.
func buildReportListQuery(q model.ReportQuery) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.Status != "" {
		add("status = $%d", q.Status)
	}
	if q.Category != "" {
		add("category = $%d", q.Category)
	}
	if q.Severity != 0 {
		add("severity = $%d", q.Severity)
	}
	if q.Since != nil {
		add("created_at >= $%d", *q.Since)
	}
	if q.UserID != nil {
		add("user_id = $%d", *q.UserID)
	}

	var sb strings.Builder
	sb.WriteString("SELECT")
	sb.WriteString(reportColumns)
	sb.WriteString("\n        FROM danger_reports")
	if len(where) > 0 {
		sb.WriteString("\n        WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n        ORDER BY created_at DESC")
	return sb.String(), args
}

func (api *API) ListReportsRepo(ctx context.Context, q model.ReportQuery) ([]model.Report, error) {
	query, args := buildReportListQuery(q)
	rows, err := api.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (api *API) GetReportByIDRepo(ctx context.Context, id uuid.UUID) (model.Report, error) {
	query := `SELECT` + reportColumns + `
        FROM danger_reports
        WHERE id = $1`
	return scanReport(api.DB.QueryRow(ctx, query, id))
}

// CreateReportRepo inserts a report. The status is always pending no
// matter what the caller asked for.
func (api *API) CreateReportRepo(ctx context.Context, req model.CreateReportRequest) (model.Report, error) {
	processed := req.ProcessedImageURLs
	if processed == nil {
		processed = []string{}
	}
	query := `
        INSERT INTO danger_reports (
            user_id, title, description, category, severity, position,
            status, image_url, processed_image_urls
        ) VALUES (
            $1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($6, $7), 4326),
            'pending', $8, $9
        ) RETURNING` + reportColumns
	return scanReport(api.DB.QueryRow(ctx, query,
		req.UserID, req.Title, req.Description, req.Category, req.Severity,
		req.Longitude, req.Latitude, req.ImageURL, processed,
	))
}

// DeleteReportRepo removes the report and returns the owner and status it
// had. ErrReportNotFound means there was nothing to delete.
func (api *API) DeleteReportRepo(ctx context.Context, id uuid.UUID) (uuid.UUID, string, error) {
	var (
		owner  uuid.UUID
		status string
	)
	err := api.DB.QueryRow(ctx,
		`DELETE FROM danger_reports WHERE id = $1 RETURNING user_id, status`, id,
	).Scan(&owner, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, "", ErrReportNotFound
	}
	if err != nil {
		return uuid.Nil, "", err
	}
	return owner, status, nil
}

// ApproveReportRepo moves a pending report to approved. Approved reports
// never go back, so a second approval is a conflict.
func (api *API) ApproveReportRepo(ctx context.Context, id uuid.UUID) (model.Report, error) {
	query := `
        UPDATE danger_reports
        SET status = 'approved'
        WHERE id = $1 AND status = 'pending'
        RETURNING` + reportColumns

	var report model.Report
	err := api.Deps.DB.RunInTx(ctx, func(tx pgx.Tx) error {
		var err error
		report, err = scanReport(tx.QueryRow(ctx, query, id))
		if !errors.Is(err, ErrReportNotFound) {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM danger_reports WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrReportAlreadyActive
		}
		return ErrReportNotFound
	})
	if err != nil {
		return model.Report{}, err
	}
	return report, nil
}

// AppendProcessedImagesRepo adds the URLs the report does not have yet, in
// order, in a single statement so concurrent appends do not lose writes.
func (api *API) AppendProcessedImagesRepo(ctx context.Context, id uuid.UUID, urls []string) (model.Report, error) {
	query := `
        UPDATE danger_reports
        SET processed_image_urls = processed_image_urls || ARRAY(
            SELECT u.url
            FROM unnest($2::text[]) WITH ORDINALITY AS u(url, ord)
            WHERE NOT (u.url = ANY(processed_image_urls))
            ORDER BY u.ord
        )
        WHERE id = $1
        RETURNING` + reportColumns
	return scanReport(api.DB.QueryRow(ctx, query, id, dedupe(urls)))
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok || u == "" {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
