// Package teamspaces defines the repository for teamspaces and their storage
// usage counters.
package teamspaces

import (
	"context"

	"github.com/cloudcrate/cloudcrate/internal/models"
)

type Repository interface {
	// GetByID fetches one teamspace. Returns common.ErrorNotFound when absent.
	GetByID(ctx context.Context, id int64) (*models.Teamspace, error)

	// AdjustUsedStorage atomically adds deltaMB (which may be negative) to
	// the teamspace's stored counter, clamping at zero.
	AdjustUsedStorage(ctx context.Context, id int64, deltaMB int64) error

	// SetUsedStorage overwrites the stored counter. Used by recalculation.
	SetUsedStorage(ctx context.Context, id int64, usedMB int64) error
}
