package reviewers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrainlyTree-Project/Backend/models"
)

// AssignmentSource provides the raw reviewer lists per tier.
type AssignmentSource interface {
	SiteReviewers(ctx context.Context, companyID, siteID string) ([]models.Reviewer, error)
	CompanyReviewers(ctx context.Context, companyID string) ([]models.Reviewer, error)
	SuperAdmins(ctx context.Context) ([]models.Reviewer, error)
}

// Resolver walks the degradation chain: site-scoped assignments, then
// company-wide assignments, then every active super-administrator. The first
// non-empty tier wins, so an event is never silently unrouted as long as one
// administrator exists. The dispatcher stays blind to which tier produced
// the list.
type Resolver struct {
	Source AssignmentSource
	Logger *slog.Logger
}

func (r *Resolver) Resolve(ctx context.Context, companyID, siteID string) ([]models.Reviewer, error) {
	tiers := []struct {
		name  string
		fetch func(context.Context) ([]models.Reviewer, error)
	}{
		{"site", func(ctx context.Context) ([]models.Reviewer, error) {
			if siteID == "" {
				return nil, nil
			}
			return r.Source.SiteReviewers(ctx, companyID, siteID)
		}},
		{"company", func(ctx context.Context) ([]models.Reviewer, error) {
			return r.Source.CompanyReviewers(ctx, companyID)
		}},
		{"super_admin", func(ctx context.Context) ([]models.Reviewer, error) {
			return r.Source.SuperAdmins(ctx)
		}},
	}

	for _, tier := range tiers {
		list, err := tier.fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve %s reviewers: %w", tier.name, err)
		}

		active := filterActive(list)
		if len(active) > 0 {
			r.Logger.Debug("reviewers resolved", "tier", tier.name, "company_id", companyID, "count", len(active))
			return active, nil
		}
	}

	r.Logger.Warn("no reviewers resolvable", "company_id", companyID, "site_id", siteID)
	return nil, nil
}

func filterActive(list []models.Reviewer) []models.Reviewer {
	var active []models.Reviewer
	for _, rv := range list {
		if rv.Active {
			active = append(active, rv)
		}
	}
	return active
}
