package service

import (
	"context"
	"encoding/json"

	"vendor-service/internal/reliability"
	"vendor-service/internal/store"
	"vendor-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListFilter selects a page of suppliers
type ListFilter struct {
	Category string
	Limit    int
	Offset   int
}

// GetSupplier returns the supplier scorecard with its ledger
func (s *SupplierService) GetSupplier(ctx context.Context, supplierID uuid.UUID) (*SupplierView, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.GetSupplier")
	defer span.End()

	if cached, err := s.cache.GetScorecard(ctx, supplierID); err != nil {
		s.logger.Warn("Scorecard cache read failed", zap.Error(err))
	} else if cached != nil {
		var view SupplierView
		if err := json.Unmarshal(cached, &view); err == nil {
			util.ScorecardCacheTotal.WithLabelValues("hit").Inc()
			return &view, nil
		}
	}
	util.ScorecardCacheTotal.WithLabelValues("miss").Inc()

	version, verr := s.cache.ScorecardVersion(ctx, supplierID)
	if verr != nil {
		s.logger.Warn("Scorecard version read failed", zap.Error(verr))
	}

	supplier, err := s.store.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	view := detailView(supplier)
	if payload := encode(view); payload != nil && verr == nil {
		if _, err := s.cache.SetScorecard(ctx, supplierID, version, payload, s.opts.ScorecardTTL); err != nil {
			s.logger.Warn("Scorecard cache write failed", zap.Error(err))
		}
	}
	return view, nil
}

// ListSuppliers returns suppliers newest first
func (s *SupplierService) ListSuppliers(ctx context.Context, f ListFilter) ([]SupplierView, int64, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.ListSuppliers")
	defer span.End()

	suppliers, total, err := s.store.ListSuppliers(ctx, store.SupplierFilter{
		Category: f.Category,
		Limit:    f.Limit,
		Offset:   f.Offset,
	})
	if err != nil {
		return nil, 0, err
	}

	views := make([]SupplierView, 0, len(suppliers))
	for _, sup := range suppliers {
		views = append(views, summaryView(sup))
	}
	return views, total, nil
}

// Alternatives ranks other suppliers of the same category by score
func (s *SupplierService) Alternatives(ctx context.Context, supplierID uuid.UUID) ([]SupplierView, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.Alternatives")
	defer span.End()

	target, err := s.store.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	candidates, _, err := s.store.ListSuppliers(ctx, store.SupplierFilter{Category: target.Category})
	if err != nil {
		return nil, err
	}

	ranked := reliability.RankAlternatives(candidates, target)
	views := make([]SupplierView, 0, len(ranked))
	for _, sup := range ranked {
		views = append(views, summaryView(sup))
	}
	return views, nil
}

// DelayOutlook returns the heuristic delay estimate for a supplier
func (s *SupplierService) DelayOutlook(ctx context.Context, supplierID uuid.UUID) (reliability.DelayOutlook, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.DelayOutlook")
	defer span.End()

	supplier, err := s.store.GetSupplier(ctx, supplierID)
	if err != nil {
		return reliability.DelayOutlook{}, err
	}
	return supplier.DelayOutlook(), nil
}

// Dashboard summarizes reliability across all suppliers
func (s *SupplierService) Dashboard(ctx context.Context) (reliability.Summary, error) {
	ctx, span := util.StartSpan(ctx, "SupplierService.Dashboard")
	defer span.End()

	if cached, err := s.cache.GetDashboard(ctx); err != nil {
		s.logger.Warn("Dashboard cache read failed", zap.Error(err))
	} else if cached != nil {
		var summary reliability.Summary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return summary, nil
		}
	}

	version, verr := s.cache.DashboardVersion(ctx)
	if verr != nil {
		s.logger.Warn("Dashboard version read failed", zap.Error(verr))
	}

	suppliers, _, err := s.store.ListSuppliers(ctx, store.SupplierFilter{})
	if err != nil {
		return reliability.Summary{}, err
	}

	summary := reliability.Summarize(suppliers)
	if payload := encode(summary); payload != nil && verr == nil {
		if _, err := s.cache.SetDashboard(ctx, version, payload, s.opts.DashboardTTL); err != nil {
			s.logger.Warn("Dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}
