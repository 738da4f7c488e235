package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/upload"
)

// multipartOverhead leaves room for headers and boundaries around the file.
const multipartOverhead = 64 << 10

type UploadHandler struct {
	uploader *upload.Uploader
	logger   *slog.Logger
}

func NewUploadHandler(u *upload.Uploader, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploader: u, logger: logger}
}

type uploadResponse struct {
	ImageURL string `json:"imageUrl"`
	Message  string `json:"message"`
}

// Upload accepts a multipart form with the image in the "image" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploader.MaxBytes()+multipartOverhead)

	file, _, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg := fmt.Sprintf("must be at most %d bytes", h.uploader.MaxBytes())
			writeError(w, h.logger, apperr.Validation("image too large", map[string]string{"image": msg}))
			return
		}
		writeError(w, h.logger, apperr.Validation("no file uploaded", map[string]string{"image": "is required"}))
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("image uploaded", "url", url)
	writeJSON(w, http.StatusOK, uploadResponse{ImageURL: url, Message: "File uploaded successfully"})
}
