package services

import (
	"errors"
	"net/http"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dberror"
	"github.com/practiceops/servicecatalog/internal/common/apperrors"
)

var (
	ErrCatalog        apperrors.Error = apperrors.New("catalog error").SetStatusCode(http.StatusInternalServerError)
	ErrValidation     apperrors.Error = ErrCatalog.New("validation error").SetStatusCode(http.StatusBadRequest)
	ErrTenantRequired apperrors.Error = ErrValidation.New("Tenant context is required").SetStatusCode(http.StatusBadRequest)
	ErrConflict       apperrors.Error = ErrCatalog.New("conflict").SetStatusCode(http.StatusConflict)
	ErrNotFound       apperrors.Error = ErrCatalog.New("Service not found").SetStatusCode(http.StatusNotFound)
	ErrPersistence    apperrors.Error = ErrCatalog.New("unable to access the catalog store").SetStatusCode(http.StatusInternalServerError)
)

var (
	errSlugTaken      = ErrConflict.Msg("A service with this slug already exists")
	errSourceNotFound = ErrNotFound.Msg("Source service not found")
)

// storeError classifies an error returned by the Store.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var appErr apperrors.Error
	switch {
	case errors.Is(err, ErrCatalog):
		return err
	case errors.Is(err, dberror.ErrAlreadyExists):
		return errSlugTaken
	case errors.Is(err, dberror.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, dberror.ErrInvalidInput) && errors.As(err, &appErr):
		return ErrValidation.MsgErr(appErr.Error(), err)
	default:
		return ErrPersistence.Err(err)
	}
}

// validationError names the offending field.
func validationError(fields apperrors.FieldErrors) error {
	if len(fields) == 0 {
		return nil
	}
	return ErrValidation.MsgErr(fields.First().Reason, fields)
}
