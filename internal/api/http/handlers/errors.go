package handlers

import (
	"errors"
	"net/http"

	"github.com/spec-kit/facezhuk/internal/auth"
	"github.com/spec-kit/facezhuk/internal/domain"
	"github.com/spec-kit/facezhuk/internal/service"
	"github.com/spec-kit/facezhuk/internal/worker"
	apperrors "github.com/spec-kit/facezhuk/pkg/util/errorutil"
)

// mapError translates service failures into client-facing errors. Anything
// unrecognised becomes a 500 in the error middleware.
func mapError(err error) error {
	var conflict *domain.ConflictError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &conflict):
		return apperrors.NewConflict(conflict.Error(), map[string]any{"field": conflict.Field})
	case errors.Is(err, auth.ErrInvalidCredential):
		return apperrors.NewUnauthorized(auth.ErrInvalidCredential.Error())
	case errors.Is(err, auth.ErrInvalidProvider):
		return apperrors.NewBadRequest(auth.ErrInvalidProvider.Error())
	case errors.Is(err, auth.ErrExpiredToken), errors.Is(err, auth.ErrMalformedToken):
		return apperrors.NewBadRequest("invalid or expired token")
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, service.ErrTwoFactorEnabled), errors.Is(err, service.ErrTwoFactorNotEnabled):
		return apperrors.NewConflict(err.Error(), nil)
	case errors.Is(err, service.ErrEmptyProfileChange), errors.Is(err, service.ErrUnknownNotification):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, service.ErrSelfNotification):
		return apperrors.NewBadRequest(err.Error())
	case errors.Is(err, worker.ErrQueueFull):
		return apperrors.NewDomainError("QUEUE_FULL", "try again later", http.StatusServiceUnavailable, nil)
	}
	return err
}
