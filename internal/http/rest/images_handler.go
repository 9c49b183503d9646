package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/bwise1/hazard_map/internal/mapview"
	"github.com/bwise1/hazard_map/internal/metrics"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util"
	"github.com/bwise1/hazard_map/util/tracing"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead leaves room for form boundaries and small fields on
// top of the image itself.
const multipartOverhead = 1 << 20

func (api *API) ImageRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodPost, "/", Handler(api.UploadImage))
	})

	return mux
}

func (api *API) maxImageBytes() int64 {
	if api.Config != nil && api.Config.MaxImageBytes > 0 {
		return api.Config.MaxImageBytes
	}
	return mapview.DefaultMaxImageBytes
}

// readImageForm pulls one image out of a multipart request and checks it
// with the same rules the map applies before uploading.
func (api *API) readImageForm(w http.ResponseWriter, r *http.Request, field string) (model.Image, string, string, error) {
	max := api.maxImageBytes()
	r.Body = http.MaxBytesReader(w, r.Body, max+multipartOverhead)

	file, header, err := r.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.Image{}, values.Unprocessable, "image is too large", err
		}
		return model.Image{}, values.BadRequestBody, "missing image file", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, max+1))
	if err != nil {
		return model.Image{}, values.BadRequestBody, "unable to read image", err
	}

	img := model.Image{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if err := mapview.ValidateImage(img, max); err != nil {
		return model.Image{}, values.Unprocessable, err.Error(), err
	}
	return img, values.Success, "", nil
}

func (api *API) UploadImage(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	img, status, message, err := api.readImageForm(w, r, "file")
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	kind := model.ImageKind(r.FormValue("kind"))
	if kind == "" {
		kind = model.ImageOriginal
	}
	if !kind.Valid() {
		return respondWithError(errors.New("invalid image kind"), "kind must be original or processed", values.BadRequestBody, &tc)
	}

	if api.Deps == nil || api.Deps.Cloudinary == nil {
		return respondWithError(errors.New("storage missing"), "Image storage is not configured", values.Error, &tc)
	}

	url, err := api.Deps.Cloudinary.UploadImage(r.Context(), img, kind)
	if api.Metrics != nil {
		api.Metrics.ImageUploads.WithLabelValues(string(kind), metrics.Result(err)).Inc()
	}
	if err != nil {
		return respondWithError(err, "Failed to upload image", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "Image uploaded successfully",
		Status:     values.Created,
		StatusCode: util.StatusCode(values.Created),
		Data:       model.UploadImageResponse{URL: url, Kind: kind},
	}
}
