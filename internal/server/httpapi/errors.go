package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/server/auth"
	"github.com/dmitrijs2005/mediakeeper/internal/server/services"
	"github.com/dmitrijs2005/mediakeeper/internal/server/storage"
	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
)

const (
	msgInternal        = "Something went wrong!"
	msgAlreadyExists   = "User with this username or email already exists"
	msgUserNotFound    = "User not found"
	msgNoPhoto         = "User has no profile photo to remove"
	msgNoFile          = "No file uploaded"
	msgFileTooLarge    = "File too large. Please select a smaller file."
	msgUnexpectedFile  = "Unexpected file field."
	msgBadForm         = "File upload failed."
	msgBadJSON         = "Invalid request body"
	msgPasswordTooLong = "Password cannot exceed 72 bytes"
)

// httpError is an error already carrying its client-facing status.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(msg string) error { return &httpError{status: http.StatusBadRequest, message: msg} }

// statusFor maps an error from the service layer to a status and a message
// that is safe to show. Provider and database internals never leak.
func statusFor(err error) (int, string) {
	var (
		he *httpError
		ve *upload.ValidationError
		fe *services.FieldError
		ae *upload.AttemptError
		se *storage.StorageError
	)

	switch {
	case errors.As(err, &he):
		return he.status, he.message
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &fe):
		return http.StatusBadRequest, fe.Message
	case errors.Is(err, auth.ErrPasswordTooLong):
		return http.StatusBadRequest, msgPasswordTooLong
	case errors.Is(err, services.ErrNoProfilePhoto):
		return http.StatusBadRequest, msgNoPhoto
	case errors.As(err, &ae) && ae.State == upload.RejectedAtTransfer && errors.As(err, &se):
		return http.StatusBadRequest, se.Message
	case errors.As(err, &se):
		status := se.HTTPStatus()
		if status == http.StatusInternalServerError {
			return status, msgInternal
		}
		return status, se.Message
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, msgAlreadyExists
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, msgUserNotFound
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= 500 {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, msg, nil)
}
