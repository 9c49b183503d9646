package config

import (
	"errors"
	"log"
	"time"

	"github.com/bwise1/hazard_map/util"
	"github.com/caarlos0/env/v11"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                int           `env:"PORT" envDefault:"8080"`
	Dsn                 string        `env:"DSN" envDefault:"postgres://localhost:5432/hazard_map?sslmode=disable"`
	JwtSecret           string        `env:"JWT_SECRET"`
	CloudinaryCloudName string        `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string        `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string        `env:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string        `env:"CLOUDINARY_FOLDER" envDefault:"danger-reports"`
	AnalysisAPIURL      string        `env:"ANALYSIS_API_URL"`
	AnalysisAPIKey      string        `env:"ANALYSIS_API_KEY"`
	AnalysisTimeout     time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"60s"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"text"`
	CorsOrigins         []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	SubmitPoints        int           `env:"SUBMIT_POINTS" envDefault:"20"`
	ViewPoints          int           `env:"VIEW_POINTS" envDefault:"5"`
	MaxImageBytes       int64         `env:"MAX_IMAGE_BYTES" envDefault:"10485760"`
}

func New() *Config {
	if loadErr := godotenv.Load(".env"); loadErr != nil {
		log.Printf("[Env]: unable to load .env file %v", loadErr)
	}

	var cfg Config

	if parseErr := env.Parse(&cfg); parseErr != nil {
		log.Printf("[Env]: failed to parse environment variables: %v", parseErr)
	}

	return &cfg
}

var (
	ErrMissingJWTSecret   = errors.New("JWT_SECRET must be set")
	ErrInvalidAnalysisURL = errors.New("ANALYSIS_API_URL must be an absolute url")
)

// Validate checks the settings the HTTP server cannot run without. An
// empty ANALYSIS_API_URL is allowed and disables analysis.
func (c *Config) Validate() error {
	if c.JwtSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.AnalysisAPIURL != "" && !util.IsURL(c.AnalysisAPIURL) {
		return ErrInvalidAnalysisURL
	}
	return nil
}
