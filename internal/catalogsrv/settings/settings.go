// Package settings reads per tenant catalog settings from a YAML or JSON
// document:
//
//	services:
//	  allowCloning: true
//	tenants:
//	  acme:
//	    services:
//	      allowCloning: false
//
// A tenant section replaces the top level services section for that tenant.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"sigs.k8s.io/yaml"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
)

// ServicesSettings controls catalog behavior for a tenant.
type ServicesSettings struct {
	AllowCloning   bool `mapstructure:"allowCloning"`
	MaxBulkTargets int  `mapstructure:"maxBulkTargets"` // zero means no limit
}

// Defaults apply when no document or section exists.
func Defaults() ServicesSettings {
	return ServicesSettings{AllowCloning: true}
}

// Lookup resolves the settings of a tenant.
type Lookup interface {
	ServicesSettings(ctx context.Context, tenantID catcommon.TenantId) (ServicesSettings, error)
}

// AllowCloning reports whether the tenant may clone entries.
func AllowCloning(ctx context.Context, l Lookup, tenantID catcommon.TenantId) (bool, error) {
	s, err := l.ServicesSettings(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return s.AllowCloning, nil
}

// Static returns the same settings for every tenant.
type Static ServicesSettings

func (s Static) ServicesSettings(context.Context, catcommon.TenantId) (ServicesSettings, error) {
	return ServicesSettings(s), nil
}

// FileLookup reads a settings document from disk and reuses the parsed
// document for the reload interval.
type FileLookup struct {
	path   string
	reload time.Duration
	now    func() time.Time

	mu       sync.Mutex
	doc      []byte
	loadedAt time.Time
}

// NewFileLookup returns a lookup for the document at path. A zero reload
// interval reads the file on every call.
func NewFileLookup(path string, reload time.Duration) *FileLookup {
	return &FileLookup{path: path, reload: reload, now: time.Now}
}

func (l *FileLookup) ServicesSettings(ctx context.Context, tenantID catcommon.TenantId) (ServicesSettings, error) {
	doc, err := l.document(ctx)
	if err != nil {
		return ServicesSettings{}, err
	}
	if doc == nil {
		return Defaults(), nil
	}

	section := gjson.Result{}
	if !tenantID.IsNull() {
		section = gjson.GetBytes(doc, "tenants."+EscapePath(string(tenantID))+".services")
	}
	if !section.Exists() {
		section = gjson.GetBytes(doc, "services")
	}
	if !section.Exists() {
		return Defaults(), nil
	}
	if !section.IsObject() {
		return ServicesSettings{}, fmt.Errorf("settings: services section must be an object")
	}

	out := Defaults()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return ServicesSettings{}, err
	}
	if err := decoder.Decode(section.Value()); err != nil {
		return ServicesSettings{}, fmt.Errorf("settings: %w", err)
	}
	return out, nil
}

// document returns the settings document as JSON, or nil when the file
// does not exist.
func (l *FileLookup) document(ctx context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loadedAt.IsZero() && l.reload > 0 && l.now().Sub(l.loadedAt) < l.reload {
		return l.doc, nil
	}
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Ctx(ctx).Debug().Str("file", l.path).Msg("settings file not found, using defaults")
		l.doc, l.loadedAt = nil, l.now()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	doc, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("settings: invalid document: %w", err)
	}
	l.doc, l.loadedAt = doc, l.now()
	return doc, nil
}

// EscapePath escapes the gjson and sjson path characters in a single key.
func EscapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
