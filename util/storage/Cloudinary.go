package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/bwise1/hazard_map/config"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Cloudinary struct {
	CLD    *cloudinary.Cloudinary
	Folder string
	now    func() time.Time
}

func NewCloudinary(cfg *config.Config) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("initialising cloudinary: %w", err)
	}

	return &Cloudinary{CLD: cld, Folder: cfg.CloudinaryFolder, now: time.Now}, nil
}

// UploadImage stores the image under <folder>/<kind> and returns its
// public URL with a cache-defeating query parameter.
func (c *Cloudinary) UploadImage(ctx context.Context, img model.Image, kind model.ImageKind) (string, error) {
	ts := c.now()
	overwrite := false
	publicID := fmt.Sprintf("%d-%s-%s", ts.UnixMilli(), util.GenerateUUID().String()[:8], kind)

	resp, err := c.CLD.Upload.Upload(ctx, bytes.NewReader(img.Data), uploader.UploadParams{
		Folder:       path.Join(c.Folder, string(kind)),
		PublicID:     publicID,
		ResourceType: "image",
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", resp.Error.Message)
	}
	return util.CacheBust(resp.SecureURL, ts), nil
}
