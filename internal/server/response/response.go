// Package response encodes API responses and decodes request bodies as JSON
// or msgpack, depending on the Accept and Content-Type headers.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/allocator/internal/domain"
)

// ContentTypeMsgpack is the media type clients send to get msgpack bodies.
const ContentTypeMsgpack = "application/msgpack"

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 8 << 20

// Envelope wraps every successful response.
type Envelope struct {
	Data     interface{}            `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

// ErrorBody is returned on failure.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WantsMsgpack reports whether the client asked for msgpack.
func WantsMsgpack(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), ContentTypeMsgpack)
}

// Write encodes v with the codec the client asked for.
func Write(w http.ResponseWriter, r *http.Request, status int, v interface{}, log zerolog.Logger) {
	if r != nil && WantsMsgpack(r) {
		w.Header().Set("Content-Type", ContentTypeMsgpack)
		w.WriteHeader(status)
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			log.Error().Err(err).Msg("Failed to encode msgpack response")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Data writes 200 with data wrapped in an Envelope.
func Data(w http.ResponseWriter, r *http.Request, data interface{}, log zerolog.Logger) {
	Write(w, r, http.StatusOK, Envelope{
		Data: data,
		Metadata: map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}, log)
}

// Error maps err to a status code and writes an ErrorBody.
func Error(w http.ResponseWriter, r *http.Request, err error, log zerolog.Logger) {
	status := StatusFor(err)
	body := ErrorBody{Error: err.Error(), Kind: kindOf(err)}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		body.Error = "internal error"
	} else {
		log.Warn().Err(err).Int("status", status).Msg("Request rejected")
	}
	Write(w, r, status, body, log)
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.As(err, &maxBytes):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInfeasibleTarget), errors.Is(err, domain.ErrNonConvergence):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrInfeasibleTarget):
		return "infeasible_target"
	case errors.Is(err, domain.ErrNonConvergence):
		return "non_convergence"
	default:
		return ""
	}
}

// Decode reads the request body into v. Bodies sent as application/msgpack
// are decoded with msgpack, everything else as JSON. Decoding failures wrap
// ErrInvalidInput.
func Decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == ContentTypeMsgpack {
		dec := msgpack.NewDecoder(body)
		dec.SetCustomStructTag("json")
		err = dec.Decode(v)
	} else {
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		err = dec.Decode(v)
	}

	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty request body", domain.ErrInvalidInput)
	}
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
