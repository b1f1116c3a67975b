package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

var errPanic = errors.New("handler panicked")

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Rule      string `json:"rule,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case apperr.KindUnprocessable:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status. Internal details stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := loggerFrom(r)
	if responseAlreadyWritten(w) {
		log.Error("request.late_error", "err", err)
		return
	}

	kind := apperr.KindOf(err)
	status := statusFor(kind)
	d := errorDetail{Code: kind.String(), Message: "internal error", RequestID: requestIDFrom(r)}
	if ae, ok := apperr.As(err); ok && kind != apperr.KindInternal {
		d.Message = ae.Msg
		d.Field = ae.Field
		d.Rule = string(ae.Rule)
		if kind == apperr.KindMethodNotAllowed && len(ae.Allow) > 0 {
			w.Header().Set("Allow", strings.Join(ae.Allow, ", "))
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error("request.failed", "err", err)
	} else {
		log.Info("request.rejected", "code", d.Code, "field", d.Field, "rule", d.Rule, "msg", d.Message)
	}
	writeJSON(w, status, errorBody{Error: d})
}
