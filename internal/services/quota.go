package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cloudcrate/cloudcrate/internal/metrics"
	"github.com/cloudcrate/cloudcrate/internal/models"
	"github.com/cloudcrate/cloudcrate/internal/repositories/repomanager"
)

const mib = int64(1 << 20)

// BytesToMB converts a byte count to megabytes at the quota boundary,
// rounding up so a 1-byte file still occupies one accounted megabyte.
func BytesToMB(bytes int64) int64 {
	if bytes <= 0 {
		return 0
	}
	return (bytes + mib - 1) / mib
}

// QuotaService maintains the running storage-usage counters per user and per
// teamspace. The counters are a performance optimization: the authoritative
// value is always recoverable through Recalculate, which refolds the
// non-deleted file sizes of the tenant.
type QuotaService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	size    *SizeService
	metrics *metrics.StorageMetrics
}

func NewQuotaService(db *sql.DB, repos repomanager.RepositoryManager, size *SizeService, m *metrics.StorageMetrics) *QuotaService {
	return &QuotaService{db: db, repos: repos, size: size, metrics: m}
}

func (s *QuotaService) track(tenant models.TenantKind, op string, mb int64) {
	if s.metrics != nil {
		s.metrics.QuotaAdjustedMB.WithLabelValues(string(tenant), op).Add(float64(mb))
	}
}

// AddPersonal charges bytes against a user's counter. Fails with
// ErrorNotFound when the user does not exist.
func (s *QuotaService) AddPersonal(ctx context.Context, userID int64, bytes int64) error {
	mb := BytesToMB(bytes)
	if err := s.repos.Users(s.db).AdjustUsedStorage(ctx, userID, mb); err != nil {
		return err
	}
	s.track(models.TenantUser, "add", mb)
	return nil
}

// RemovePersonal releases bytes from a user's counter. The stored counter
// never goes below zero.
func (s *QuotaService) RemovePersonal(ctx context.Context, userID int64, bytes int64) error {
	mb := BytesToMB(bytes)
	if err := s.repos.Users(s.db).AdjustUsedStorage(ctx, userID, -mb); err != nil {
		return err
	}
	s.track(models.TenantUser, "remove", mb)
	return nil
}

// CanAddPersonal reports whether the user's plan-derived limit leaves room
// for bytes more. It never mutates state.
func (s *QuotaService) CanAddPersonal(ctx context.Context, userID int64, bytes int64) (bool, error) {
	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	limit := user.Limits().StorageMB
	if limit < 0 {
		return true, nil
	}
	return user.UsedStorageMB+BytesToMB(bytes) <= limit, nil
}

// AddTeamspace charges bytes against a teamspace's counter.
func (s *QuotaService) AddTeamspace(ctx context.Context, teamspaceID int64, bytes int64) error {
	mb := BytesToMB(bytes)
	if err := s.repos.Teamspaces(s.db).AdjustUsedStorage(ctx, teamspaceID, mb); err != nil {
		return err
	}
	s.track(models.TenantTeam, "add", mb)
	return nil
}

// RemoveTeamspace releases bytes from a teamspace's counter.
func (s *QuotaService) RemoveTeamspace(ctx context.Context, teamspaceID int64, bytes int64) error {
	mb := BytesToMB(bytes)
	if err := s.repos.Teamspaces(s.db).AdjustUsedStorage(ctx, teamspaceID, -mb); err != nil {
		return err
	}
	s.track(models.TenantTeam, "remove", mb)
	return nil
}

// CanAddTeamspace compares against the teamspace's own stored limit rather
// than a plan table.
func (s *QuotaService) CanAddTeamspace(ctx context.Context, teamspaceID int64, bytes int64) (bool, error) {
	ts, err := s.repos.Teamspaces(s.db).GetByID(ctx, teamspaceID)
	if err != nil {
		return false, err
	}
	if ts.StorageLimitMB < 0 {
		return true, nil
	}
	return ts.UsedStorageMB+BytesToMB(bytes) <= ts.StorageLimitMB, nil
}

// Add dispatches to the personal or teamspace counter for the tenant.
func (s *QuotaService) Add(ctx context.Context, tenant models.Tenant, bytes int64) error {
	if tenant.Kind == models.TenantTeam {
		return s.AddTeamspace(ctx, tenant.ID, bytes)
	}
	return s.AddPersonal(ctx, tenant.ID, bytes)
}

// Remove dispatches to the personal or teamspace counter for the tenant.
func (s *QuotaService) Remove(ctx context.Context, tenant models.Tenant, bytes int64) error {
	if tenant.Kind == models.TenantTeam {
		return s.RemoveTeamspace(ctx, tenant.ID, bytes)
	}
	return s.RemovePersonal(ctx, tenant.ID, bytes)
}

// CanAdd dispatches the limit check for the tenant.
func (s *QuotaService) CanAdd(ctx context.Context, tenant models.Tenant, bytes int64) (bool, error) {
	if tenant.Kind == models.TenantTeam {
		return s.CanAddTeamspace(ctx, tenant.ID, bytes)
	}
	return s.CanAddPersonal(ctx, tenant.ID, bytes)
}

// RecalculatePersonal recomputes the user's counter from the sum of all
// non-deleted file sizes and overwrites the stored value. This is the
// drift-correction path.
func (s *QuotaService) RecalculatePersonal(ctx context.Context, userID int64) error {
	if _, err := s.repos.Users(s.db).GetByID(ctx, userID); err != nil {
		return err
	}
	bytes, _, err := s.size.FolderSize(ctx, models.UserTenant(userID), nil)
	if err != nil {
		return fmt.Errorf("recalculate user %d: %w", userID, err)
	}
	return s.repos.Users(s.db).SetUsedStorage(ctx, userID, BytesToMB(bytes))
}

// RecalculateTeamspace recomputes a teamspace's counter the same way.
func (s *QuotaService) RecalculateTeamspace(ctx context.Context, teamspaceID int64) error {
	if _, err := s.repos.Teamspaces(s.db).GetByID(ctx, teamspaceID); err != nil {
		return err
	}
	bytes, _, err := s.size.FolderSize(ctx, models.TeamTenant(teamspaceID), nil)
	if err != nil {
		return fmt.Errorf("recalculate teamspace %d: %w", teamspaceID, err)
	}
	return s.repos.Teamspaces(s.db).SetUsedStorage(ctx, teamspaceID, BytesToMB(bytes))
}
