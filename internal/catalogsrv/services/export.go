package services

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/models"
)

var exportHeader = []string{"Name", "Slug", "Category", "Price", "Duration", "Featured", "Active", "Status", "CreatedAt", "UpdatedAt"}

// Export renders every entry of the tenant ordered by name. Unless
// opts.IncludeInactive is set only active entries with status ACTIVE are
// included.
func (s *CatalogService) Export(ctx context.Context, tenantID catcommon.TenantId, opts ExportOptions) (string, error) {
	f := models.ServiceFilter{TenantID: tenantID}
	if !opts.IncludeInactive {
		f.Active = boolPtr(true)
		f.Status = catcommon.StatusActive
	}
	rows, err := s.store.ListServices(ctx, f, models.ListOptions{SortColumn: models.ColName})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to export services")
		return "", storeError(err)
	}
	log.Ctx(ctx).Info().Int("rows", len(rows)).Str("format", opts.Format).Msg("exporting services")

	if strings.EqualFold(opts.Format, ExportJSON) {
		entries := make([]Entry, 0, len(rows))
		for i := range rows {
			entries = append(entries, toEntry(&rows[i]))
		}
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(entries, "", "  ")
		if err != nil {
			return "", ErrCatalog.MsgErr("unable to encode export", err)
		}
		return string(out), nil
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, csvLine(exportHeader))
	for i := range rows {
		lines = append(lines, csvLine(csvRecord(&rows[i])))
	}
	return strings.Join(lines, "\n"), nil
}

func csvRecord(svc *models.Service) []string {
	var category, price, duration string
	if svc.Category != nil {
		category = *svc.Category
	}
	if svc.Price.Valid {
		price = svc.Price.Decimal.String()
	}
	if svc.DurationMinutes != nil {
		duration = strconv.Itoa(*svc.DurationMinutes)
	}
	return []string{
		svc.Name,
		svc.Slug,
		category,
		price,
		duration,
		yesNo(svc.Featured),
		yesNo(svc.Active),
		svc.Status,
		svc.CreatedAt.UTC().Format(time.RFC3339),
		svc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func csvLine(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = csvField(f)
	}
	return strings.Join(quoted, ",")
}

// csvField quotes f when it contains a comma, a double quote or any
// whitespace. Quotes inside f are doubled.
func csvField(f string) string {
	if !strings.ContainsFunc(f, func(r rune) bool { return r == ',' || r == '"' || unicode.IsSpace(r) }) {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
