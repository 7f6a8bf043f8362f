package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/revise/internal/srs"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

// statusFor maps scheduler errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, srs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, srs.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes err as a JSON error body. Details of internal errors
// are logged but not sent to the client.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := errorDetail{Message: err.Error()}
	switch status {
	case http.StatusNotFound:
		detail.Code = "NOT_FOUND"
	case http.StatusBadRequest:
		detail.Code = "INVALID_INPUT"
	default:
		loggerFrom(r.Context()).Error("Unhandled error", "error", err)
		detail = errorDetail{Code: "INTERNAL_SERVER_ERROR", Message: "internal server error"}
	}
	respondJSON(w, r, status, errorResponse{Error: detail})
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		loggerFrom(r.Context()).Error("Error marshaling JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":"INTERNAL_SERVER_ERROR","message":"failed to encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it. Every failure is
// reported as invalid input.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body is required", srs.ErrInvalidInput)
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", srs.ErrInvalidInput, err)
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' rule", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", srs.ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", srs.ErrInvalidInput, err)
	}
	return nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", srs.ErrInvalidInput, name, raw)
	}
	return n, nil
}

// querySubject reads the optional subject filter; zero means every subject.
func querySubject(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("subject")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: subject must be a positive integer, got %q", srs.ErrInvalidInput, raw)
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", srs.ErrInvalidInput, raw)
	}
	return id, nil
}
