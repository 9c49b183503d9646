package deps

import (
	"context"
	"fmt"

	"github.com/bwise1/hazard_map/config"
	"github.com/bwise1/hazard_map/internal/db"
	"github.com/bwise1/hazard_map/internal/http/analysis"
	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/bwise1/hazard_map/util/storage"
	"github.com/bwise1/hazard_map/util/websockets"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependencies struct {
	DB         *db.DB
	Cloudinary *storage.Cloudinary
	WebSocket  *websockets.WebSocketManager
	Analysis   *analysis.Client
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Dependencies, error) {
	database, err := db.New(ctx, cfg.Dsn, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cloudinary, err := storage.NewCloudinary(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	if cfg.AnalysisAPIURL == "" {
		log.Warn("ANALYSIS_API_URL is not set, image analysis will fail")
	}

	deps := Dependencies{
		DB:         database,
		Cloudinary: cloudinary,
		WebSocket:  websockets.NewWebSocketManager(log),
		Analysis:   analysis.NewClient(cfg.AnalysisAPIURL, cfg.AnalysisAPIKey, cfg.AnalysisTimeout),
	}
	return &deps, nil
}

func (d *Dependencies) Pool() *pgxpool.Pool {
	return d.DB.Pool()
}

func (d *Dependencies) Close() {
	if d.WebSocket != nil {
		d.WebSocket.Stop()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
