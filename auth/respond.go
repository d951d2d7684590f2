// This file, `respond.go`, centralizes how handlers write JSON and error responses.
package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/user/akun-go/apperror"
)

// MessageResponse is the `{"msg": "..."}` body used by most endpoints.
type MessageResponse struct {
	Msg string `json:"msg" example:"Register success"`
}

// WriteJSON serializes data to JSON and writes it with the given status.
// A nil data writes the status with no body.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	// the header is already out; nothing useful left to do on failure
	_ = json.NewEncoder(w).Encode(data)
}

// WriteMessage writes a MessageResponse.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Msg: msg})
}

// WriteError converts err into a standardized response. Errors that are not an
// *apperror.AppError become internal errors. Server-side failures are logged with their
// cause and answered with a generic message; client errors are logged at debug level.
func WriteError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("unexpected error", err)
	}

	status := appErr.StatusCode()
	if log != nil {
		entry := log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"request_id": middleware.GetReqID(r.Context()),
		})
		if status >= http.StatusInternalServerError {
			entry.WithError(err).Error(appErr.Message)
		} else {
			entry.WithError(err).Debug(appErr.Message)
		}
	}

	if apperror.Is(err, apperror.UnauthorizedError) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="akun"`)
	}
	WriteJSON(w, status, appErr.ToResponse())
}
