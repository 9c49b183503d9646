package rest

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/bwise1/hazard_map/util/values"
	"github.com/google/uuid"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type formFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, path string, file *formFile, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.name))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(file.data)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadImageValidation(t *testing.T) {
	api := newTestAPI()
	token := userToken(t, uuid.New())
	png := &formFile{"hazard.png", "image/png", pngHeader}

	tests := []struct {
		name       string
		file       *formFile
		fields     map[string]string
		wantCode   int
		wantStatus string
	}{
		{"no file", nil, map[string]string{"kind": "original"}, http.StatusBadRequest, values.BadRequestBody},
		{"text file", &formFile{"notes.txt", "text/plain", []byte("hello there")}, nil, http.StatusUnprocessableEntity, values.Unprocessable},
		{"lying content type", &formFile{"fake.png", "image/png", []byte("plain words, not pixels")}, nil, http.StatusUnprocessableEntity, values.Unprocessable},
		{"too large", &formFile{"big.png", "image/png", append(append([]byte{}, pngHeader...), make([]byte, 2048)...)}, nil, http.StatusUnprocessableEntity, values.Unprocessable},
		{"unknown kind", png, map[string]string{"kind": "thumbnail"}, http.StatusBadRequest, values.BadRequestBody},
		{"valid image without storage", png, map[string]string{"kind": "processed"}, http.StatusInternalServerError, values.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, api, multipartRequest(t, "/images", tt.file, tt.fields), token)
			if rec.Code != tt.wantCode || resp.Status != tt.wantStatus {
				t.Errorf("got %d %q (%s); want %d %q", rec.Code, resp.Status, resp.Message, tt.wantCode, tt.wantStatus)
			}
		})
	}
}

func TestUploadImageRequiresLogin(t *testing.T) {
	rec, _ := do(t, newTestAPI(), multipartRequest(t, "/images", &formFile{"a.png", "image/png", pngHeader}, nil), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestAnalyzeReportRejectsBadInput(t *testing.T) {
	api := newTestAPI()
	token := userToken(t, uuid.New())

	rec, _ := do(t, api, multipartRequest(t, "/reports/nope/analysis", &formFile{"a.png", "image/png", pngHeader}, nil), token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", rec.Code)
	}

	rec, resp := do(t, api, multipartRequest(t, "/reports/"+uuid.NewString()+"/analysis", &formFile{"a.txt", "text/plain", []byte("words")}, nil), token)
	if rec.Code != http.StatusUnprocessableEntity || resp.Status != values.Unprocessable {
		t.Errorf("non-image = %d %+v", rec.Code, resp)
	}
}
