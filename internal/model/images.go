package model

// ImageKind is the logical bucket an uploaded image belongs to.
type ImageKind string

const (
	ImageOriginal  ImageKind = "original"
	ImageProcessed ImageKind = "processed"
)

func (k ImageKind) Valid() bool {
	return k == ImageOriginal || k == ImageProcessed
}

// Image is raw image content selected by a reporter.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

func (i Image) Size() int64 {
	return int64(len(i.Data))
}

type UploadImageResponse struct {
	URL  string    `json:"url"`
	Kind ImageKind `json:"kind"`
}
