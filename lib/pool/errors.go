package pool

import apperrors "github.com/go-i2p/connpool/lib/errors"

// Errors returned by the pool. These are aliases to the central definitions
// in lib/errors so callers can match either the pool error or its category.
var (
	ErrPoolClosed           = apperrors.ErrPoolClosed
	ErrPoolDisabled         = apperrors.ErrPoolDisabled
	ErrNoResourceAvailable  = apperrors.ErrNoResourceAvailable
	ErrInvalidConfiguration = apperrors.ErrInvalidConfiguration
	ErrTransactionOpen      = apperrors.ErrTransactionOpen
	ErrForeignResource      = apperrors.ErrForeignResource
	ErrResourceCreation     = apperrors.ErrResourceCreation
)
