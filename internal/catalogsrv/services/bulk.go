package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/settings"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

// Bulk action kinds as they appear on the wire.
const (
	KindActivate       = "activate"
	KindDeactivate     = "deactivate"
	KindFeature        = "feature"
	KindUnfeature      = "unfeature"
	KindCategory       = "category"
	KindPriceUpdate    = "price-update"
	KindDelete         = "delete"
	KindClone          = "clone"
	KindSettingsUpdate = "settings-update"
)

// BulkAction is one of Activate, Deactivate, Feature, Unfeature,
// SetCategory, UpdatePrice, SoftDelete, CloneEach, MergeSettings, Rejected
// or Unknown. Build one with ParseBulkAction.
type BulkAction interface {
	Kind() string
	bulkAction()
}

type (
	Activate   struct{}
	Deactivate struct{}
	Feature    struct{}
	Unfeature  struct{}
	SoftDelete struct{}

	// SetCategory assigns a non-empty category.
	SetCategory struct{ Category string }

	// UpdatePrice assigns a non-negative price.
	UpdatePrice struct{ Price decimal.Decimal }

	// CloneEach clones every target. An empty Name names each clone after
	// its source.
	CloneEach struct{ Name string }

	// MergeSettings merges an object into the settings of every target.
	MergeSettings struct{ Settings json.RawMessage }

	// Rejected is a known action whose value failed validation.
	Rejected struct {
		Action string
		Reason string
	}

	// Unknown is an action kind this server does not implement.
	Unknown struct{ Action string }
)

func (Activate) Kind() string      { return KindActivate }
func (Deactivate) Kind() string    { return KindDeactivate }
func (Feature) Kind() string       { return KindFeature }
func (Unfeature) Kind() string     { return KindUnfeature }
func (SoftDelete) Kind() string    { return KindDelete }
func (SetCategory) Kind() string   { return KindCategory }
func (UpdatePrice) Kind() string   { return KindPriceUpdate }
func (CloneEach) Kind() string     { return KindClone }
func (MergeSettings) Kind() string { return KindSettingsUpdate }
func (r Rejected) Kind() string    { return r.Action }
func (u Unknown) Kind() string     { return u.Action }

func (Activate) bulkAction()      {}
func (Deactivate) bulkAction()    {}
func (Feature) bulkAction()       {}
func (Unfeature) bulkAction()     {}
func (SoftDelete) bulkAction()    {}
func (SetCategory) bulkAction()   {}
func (UpdatePrice) bulkAction()   {}
func (CloneEach) bulkAction()     {}
func (MergeSettings) bulkAction() {}
func (Rejected) bulkAction()      {}
func (Unknown) bulkAction()       {}

// ParseBulkAction validates value for kind and returns the matching
// action.
func ParseBulkAction(kind string, value json.RawMessage) BulkAction {
	v := gjson.ParseBytes(value)
	switch kind {
	case KindActivate:
		return Activate{}
	case KindDeactivate:
		return Deactivate{}
	case KindFeature:
		return Feature{}
	case KindUnfeature:
		return Unfeature{}
	case KindDelete:
		return SoftDelete{}
	case KindCategory:
		category := strings.TrimSpace(v.Str)
		if v.Type != gjson.String || category == "" {
			return Rejected{Action: kind, Reason: "Category is required"}
		}
		if len([]rune(category)) > maxCategoryLen {
			return Rejected{Action: kind, Reason: "Category name too long (max 50)"}
		}
		return SetCategory{Category: category}
	case KindPriceUpdate:
		var raw string
		switch v.Type {
		case gjson.Number:
			raw = v.Raw
		case gjson.String:
			raw = strings.TrimSpace(v.Str)
		}
		price, err := decimal.NewFromString(raw)
		if err != nil || price.IsNegative() || price.GreaterThan(maxPrice) {
			return Rejected{Action: kind, Reason: "Valid price required"}
		}
		return UpdatePrice{Price: price}
	case KindClone:
		if v.Type == gjson.String {
			return CloneEach{Name: strings.TrimSpace(v.Str)}
		}
		return CloneEach{}
	case KindSettingsUpdate:
		if !v.IsObject() {
			return Rejected{Action: kind, Reason: "Invalid settings payload"}
		}
		return MergeSettings{Settings: json.RawMessage(v.Raw)}
	default:
		return Unknown{Action: kind}
	}
}

// BulkRequest targets IDs with one action. On the wire it is
// {"action": kind, "serviceIds": [...], "value": ...}.
type BulkRequest struct {
	Action BulkAction
	IDs    []uuid.UUID
}

type bulkRequestJSON struct {
	Action     string          `json:"action"`
	ServiceIDs []uuid.UUID     `json:"serviceIds"`
	Value      json.RawMessage `json:"value"`
}

func (r *BulkRequest) UnmarshalJSON(b []byte) error {
	var w bulkRequestJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	r.Action = ParseBulkAction(strings.TrimSpace(w.Action), w.Value)
	r.IDs = w.ServiceIDs
	return nil
}

// BulkAction applies req to every target. Failures of single targets are
// reported in the result; only store failures are returned as errors.
// Clones are all or nothing: when any clone fails, the clones created by
// the batch are removed again.
func (s *CatalogService) BulkAction(ctx context.Context, tenantID catcommon.TenantId, req BulkRequest, actor string) (*BulkResult, error) {
	res := &BulkResult{Errors: []BulkError{}}
	ids := uniqueIDs(req.IDs)
	if len(ids) == 0 {
		res.Errors = append(res.Errors, BulkError{Error: "At least one service must be selected"})
		return res, nil
	}
	action := req.Action
	if action == nil {
		action = Unknown{}
	}

	cfg, err := s.settings.ServicesSettings(ctx, tenantID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("settings lookup failed, using defaults")
		cfg = settings.Defaults()
	}
	if cfg.MaxBulkTargets > 0 && len(ids) > cfg.MaxBulkTargets {
		res.Errors = append(res.Errors, BulkError{Error: fmt.Sprintf("Too many services selected (max %d)", cfg.MaxBulkTargets)})
		return res, nil
	}

	touched := ids
	switch a := action.(type) {
	case Rejected:
		failAll(res, ids, a.Reason)
	case Unknown:
		failAll(res, ids, "Unknown bulk action")
	case CloneEach:
		s.bulkClone(ctx, tenantID, ids, a, res)
		touched = res.CreatedIDs
	case MergeSettings:
		if err := s.bulkMergeSettings(ctx, tenantID, ids, a, res); err != nil {
			return nil, err
		}
	default:
		n, err := s.store.UpdateServices(ctx, models.ServiceFilter{TenantID: tenantID, IDs: ids}, bulkUpdate(action).Set(models.ColUpdatedAt, s.now()))
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("action", action.Kind()).Msg("bulk update failed")
			return nil, storeError(err)
		}
		res.UpdatedCount = n
	}

	log.Ctx(ctx).Info().
		Str("action", action.Kind()).
		Int("targets", len(ids)).
		Int("updated", res.UpdatedCount).
		Int("errors", len(res.Errors)).
		Msg("bulk action applied")

	if res.UpdatedCount > 0 {
		s.invalidate(ctx, tenantID, touched...)
		bestEffort(ctx, "notify bulk", func() error {
			return s.notifier.BulkAction(ctx, tenantID, action.Kind(), res.UpdatedCount, actor)
		})
		s.emitBulk(ctx, tenantID, action.Kind(), res.UpdatedCount)
	}
	return res, nil
}

// bulkUpdate returns the column assignments of a single statement action.
func bulkUpdate(a BulkAction) *models.ServiceUpdate {
	upd := &models.ServiceUpdate{}
	switch a := a.(type) {
	case Activate:
		upd.Set(models.ColActive, true).Set(models.ColStatus, catcommon.StatusActive)
	case Deactivate:
		upd.Set(models.ColActive, false).Set(models.ColStatus, catcommon.StatusInactive)
	case Feature:
		upd.Set(models.ColFeatured, true)
	case Unfeature:
		upd.Set(models.ColFeatured, false)
	case SetCategory:
		c := a.Category
		upd.Set(models.ColCategory, &c)
	case UpdatePrice:
		upd.Set(models.ColPrice, decimal.NewNullDecimal(a.Price))
	case SoftDelete:
		upd = softDelete()
	}
	return upd
}

func (s *CatalogService) bulkClone(ctx context.Context, tenantID catcommon.TenantId, ids []uuid.UUID, a CloneEach, res *BulkResult) {
	allowed, err := settings.AllowCloning(ctx, s.settings, tenantID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("clone permission lookup failed, cloning allowed")
		allowed = true
	}
	if !allowed {
		failAll(res, ids, "Cloning disabled by settings")
		return
	}

	// created doubles as the compensation list of the batch.
	var created []uuid.UUID
	for _, id := range ids {
		e, err := s.clone(ctx, tenantID, a.Name, id)
		if err != nil {
			res.Errors = append(res.Errors, BulkError{ID: id.String(), Error: err.Error()})
			continue
		}
		created = append(created, e.ID)
	}

	if len(res.Errors) > 0 && len(created) > 0 {
		outcome := &RollbackOutcome{RolledBack: true}
		var kept []uuid.UUID
		for _, cid := range created {
			if err := s.store.DeleteService(ctx, tenantID, cid); err != nil {
				log.Ctx(ctx).Error().Err(err).Str("service_id", cid.String()).Msg("unable to roll back clone")
				outcome.RolledBack = false
				outcome.Errors = append(outcome.Errors, cid.String()+": "+err.Error())
				kept = append(kept, cid)
			}
		}
		res.Rollback = outcome
		created = kept
	}
	res.CreatedIDs = created
	res.UpdatedCount = len(created)
}

func (s *CatalogService) bulkMergeSettings(ctx context.Context, tenantID catcommon.TenantId, ids []uuid.UUID, a MergeSettings, res *BulkResult) error {
	rows, err := s.store.ListServices(ctx, models.ServiceFilter{TenantID: tenantID, IDs: ids}, models.ListOptions{SortColumn: models.ColID})
	if err != nil {
		return storeError(err)
	}
	byID := make(map[uuid.UUID]*models.Service, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			res.Errors = append(res.Errors, BulkError{ID: id.String(), Error: ErrNotFound.Error()})
			continue
		}
		merged, err := mergeSettings(row.Settings, a.Settings)
		if err != nil {
			res.Errors = append(res.Errors, BulkError{ID: id.String(), Error: err.Error()})
			continue
		}
		upd := (&models.ServiceUpdate{}).
			Set(models.ColSettings, merged).
			Set(models.ColUpdatedAt, s.touch(row))
		if _, err := s.store.UpdateService(ctx, tenantID, id, upd); err != nil {
			if isNotFound(err) {
				res.Errors = append(res.Errors, BulkError{ID: id.String(), Error: ErrNotFound.Error()})
				continue
			}
			return storeError(err)
		}
		res.UpdatedCount++
	}
	return nil
}

func failAll(res *BulkResult, ids []uuid.UUID, reason string) {
	for _, id := range ids {
		res.Errors = append(res.Errors, BulkError{ID: id.String(), Error: reason})
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
