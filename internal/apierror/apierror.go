package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/castregistry/cast-registry/internal/registry"
	"github.com/castregistry/cast-registry/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// statusClientClosedRequest is the status nginx uses when the client went away.
const statusClientClosedRequest = 499

const invalidInput = "Invalid input."

var (
	ErrInternal        = Errorf("The server errored out while processing your request, and we didn't write a suitable error message. You might consider that a bug on our side. Please try again, and if the error persists, contact the registry admins.")
	ErrDatabase        = Errorf("The database system encountered an error while processing your request. This is probably a transient error, please try again. If the error persists, contact the registry admins.")
	ErrMissingToken    = Errorf("No deployment service token is configured for this kind of deployment. Please contact the registry admins.")
	ErrNotFound        = Errorf("Object was not found.")
	ErrRequestCanceled = Errorf("Request canceled.")
)

// Error is an error that can be presented to end-users
type Error struct {
	err    error
	fields map[string]string
}

func (e Error) Error() string {
	return e.err.Error()
}

// Errorf formats an error message for end-users. Remember not to leak sensitive information in error messages
func Errorf(format string, args ...any) Error {
	return Error{
		err: fmt.Errorf(format, args...),
	}
}

// Invalid returns an error with a message per invalid input field.
func Invalid(fields map[string]string) Error {
	return Error{
		err:    errors.New(invalidInput),
		fields: fields,
	}
}

// Response is the JSON body of every error response.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Present returns the status code and the body presented to end-users for
// err. Errors not intended for end-users are logged with the original error
// attached.
func Present(ctx context.Context, log logrus.FieldLogger, err error) (int, Response) {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return http.StatusBadRequest, Response{Error: apiErr.Error(), Fields: apiErr.fields}
	}

	var remoteErr *fastdeploy.RemoteServiceError
	if errors.As(err, &remoteErr) {
		msg := fmt.Sprintf("The deployment service answered with status %d.", remoteErr.StatusCode)
		if remoteErr.Detail != "" {
			msg = fmt.Sprintf("The deployment service answered with status %d: %s", remoteErr.StatusCode, remoteErr.Detail)
		}
		return http.StatusBadGateway, Response{Error: msg}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		log.WithError(err).Errorf("database error")
		return http.StatusInternalServerError, Response{Error: ErrDatabase.Error()}
	}

	switch {
	case errors.Is(err, registry.ErrUnknownDeployment):
		return http.StatusNotFound, Response{Error: "Deployment was not found."}
	case errors.Is(err, registry.ErrUnknownDomain):
		return http.StatusNotFound, Response{Error: "Domain was not found."}
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict, Response{Error: "Object already exists."}
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, Response{Error: ErrNotFound.Error()}
	case errors.Is(err, fastdeploy.ErrMissingAuthorization):
		log.WithError(err).Errorf("missing service token")
		return http.StatusInternalServerError, Response{Error: ErrMissingToken.Error()}
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return statusClientClosedRequest, Response{Error: ErrRequestCanceled.Error()}
	}

	log.WithError(err).Errorf("unhandled error in the HTTP error presenter")
	return http.StatusInternalServerError, Response{Error: ErrInternal.Error()}
}

// Write presents err as a JSON response.
func Write(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	status, body := Present(r.Context(), log, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("writing error response")
	}
}
