package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// Directory reads client profiles and cohort membership from the business
// domain's tables. This subsystem never writes them.
type Directory struct {
	db  *DB
	log *zap.Logger
}

// NewDirectory creates the directory reader.
func NewDirectory(db *DB, log *zap.Logger) *Directory {
	return &Directory{db: db, log: log}
}

func (d *Directory) Get(ctx context.Context, clientID string) (*domain.ClientProfile, error) {
	var row clientProfileModel

	err := d.db.Gorm.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrClientNotFound, clientID)
		}
		return nil, fmt.Errorf("failed to query client profile %s: %w", clientID, err)
	}

	var tags []string
	err = d.db.Gorm.WithContext(ctx).
		Model(&cohortMemberModel{}).
		Where("client_id = ?", clientID).
		Pluck("cohort_tag", &tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort tags for %s: %w", clientID, err)
	}

	return &domain.ClientProfile{
		ClientID:        row.ClientID,
		OrganizationKey: row.OrganizationKey,
		CohortTags:      tags,
	}, nil
}

func (d *Directory) ListByCohort(ctx context.Context, cohortTag string) ([]domain.ClientProfile, error) {
	var memberIDs []string

	err := d.db.Gorm.WithContext(ctx).
		Model(&cohortMemberModel{}).
		Where("cohort_tag = ?", cohortTag).
		Order("client_id ASC").
		Pluck("client_id", &memberIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort members for %s: %w", cohortTag, err)
	}

	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrCohortNotFound, cohortTag)
	}

	var rows []clientProfileModel
	err = d.db.Gorm.WithContext(ctx).
		Where("client_id IN ?", memberIDs).
		Order("client_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort member profiles for %s: %w", cohortTag, err)
	}

	out := make([]domain.ClientProfile, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ClientProfile{
			ClientID:        row.ClientID,
			OrganizationKey: row.OrganizationKey,
			CohortTags:      []string{cohortTag},
		})
	}

	return out, nil
}
