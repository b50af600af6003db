package catcommon

// TenantId identifies a tenant. The empty value is the null tenant, which
// means no tenant scoping.
type TenantId string

const NullTenant TenantId = ""

// IsNull reports whether t is the null tenant.
func (t TenantId) IsNull() bool {
	return t == NullTenant
}

func (t TenantId) String() string {
	return string(t)
}

// CacheLabel renders the tenant for cache keys, where the null tenant is
// written as "global".
func (t TenantId) CacheLabel() string {
	if t.IsNull() {
		return "global"
	}
	return string(t)
}

// SystemActor is recorded when no actor accompanies a request.
const SystemActor = "system"

const (
	StatusDraft    = "DRAFT"
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)
