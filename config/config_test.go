package config

import (
	"errors"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ORIGINS", "https://a.test,https://b.test")

	cfg := New()
	if cfg.Port != 8080 || cfg.SubmitPoints != 20 || cfg.ViewPoints != 5 || cfg.MaxImageBytes != 10<<20 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.AnalysisTimeout != time.Minute {
		t.Errorf("AnalysisTimeout = %v", cfg.AnalysisTimeout)
	}
	if len(cfg.CorsOrigins) != 2 || cfg.CorsOrigins[1] != "https://b.test" {
		t.Errorf("CorsOrigins = %v", cfg.CorsOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Errorf("Validate() = %v; want ErrMissingJWTSecret", err)
	}
}

func TestValidateAnalysisURL(t *testing.T) {
	tests := []struct {
		url  string
		want error
	}{
		{"", nil},
		{"https://analysis.test/api", nil},
		{"analysis.test/api", ErrInvalidAnalysisURL},
		{"/api/analyze", ErrInvalidAnalysisURL},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := &Config{JwtSecret: "s3cret", AnalysisAPIURL: tt.url}
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v; want %v", err, tt.want)
			}
		})
	}
}
