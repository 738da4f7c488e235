package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a classified error to its HTTP status. Storage failures are
// logged and reported with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Storage("unexpected error", err)
	}

	switch ae.Kind {
	case apperr.KindValidation, apperr.KindInsufficientBalance:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ae.Message, Fields: ae.Fields})
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: ae.Message})
	case apperr.KindState:
		writeJSON(w, http.StatusConflict, errorResponse{Error: ae.Message})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid JSON", bodyFieldError(err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid JSON", map[string]string{"body": "must contain a single JSON object"})
	}
	return nil
}

func bodyFieldError(err error) map[string]string {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return map[string]string{typeErr.Field: fmt.Sprintf("must be a %s", jsonKind(typeErr.Type.Kind().String()))}
	case errors.As(err, &maxErr):
		return map[string]string{"body": fmt.Sprintf("must be at most %d bytes", maxErr.Limit)}
	case errors.Is(err, io.EOF):
		return map[string]string{"body": "is required"}
	}
	if field, ok := unknownField(err); ok {
		return map[string]string{field: "is not a recognized field"}
	}
	return map[string]string{"body": "is not valid JSON"}
}

func jsonKind(goKind string) string {
	switch goKind {
	case "string":
		return "string"
	case "bool":
		return "boolean"
	case "struct", "map":
		return "object"
	case "slice", "array":
		return "list"
	}
	return "number"
}

// unknownField extracts the name from encoding/json's `json: unknown field "x"`.
func unknownField(err error) (string, bool) {
	quoted, ok := strings.CutPrefix(err.Error(), "json: unknown field ")
	if !ok {
		return "", false
	}
	name, uerr := strconv.Unquote(quoted)
	return name, uerr == nil
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id", map[string]string{name: "must be a positive integer"})
	}
	return id, nil
}
