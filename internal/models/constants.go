package models

// Role is the coarse authorization class carried by every authenticated caller.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOwner    Role = "PROPRIETAR"
	RoleTraveler Role = "TURIST"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleTraveler:
		return true
	default:
		return false
	}
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID int64
	Email  string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanManage reports whether the caller may mutate a resource owned by ownerID.
func (i Identity) CanManage(ownerID int64) bool {
	return i.IsAdmin() || i.UserID == ownerID
}

const (
	SyncStatusPending    = "pending"
	SyncStatusProcessing = "processing"
	SyncStatusRetry      = "retry"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)

const (
	SyncTaskUpsert = "upsert"
	SyncTaskDelete = "delete"
)

const (
	// WriteLimitKeyPrefix namespaces per-user write counters in the rate limit store.
	WriteLimitKeyPrefix = "ratelimit:write"

	// SheetsCacheTTL bounds how long a cached spreadsheet row index is trusted.
	SheetsCacheTTL = 60 * 60 // seconds
)
