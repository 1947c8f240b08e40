package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/inkwell-press/editorial-api/internal/repository"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

// mapStoreError translates repository failures into the typed error kinds the
// API contract promises. Timeouts surface as retryable transient failures,
// stale writes as version conflicts, missing rows as not-found.
func mapStoreError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStaleVersion):
		return appErrors.ErrVersionConflict
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.Clone(appErrors.ErrTransientStore, message+": store timed out")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
