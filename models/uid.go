package models

import "time"

// ClaimStatus is the lifecycle state of a UID record.
type ClaimStatus string

const (
	StatusUnclaimed     ClaimStatus = "unclaimed"
	StatusPending       ClaimStatus = "pending"
	StatusClaimed       ClaimStatus = "claimed"
	StatusFullyVerified ClaimStatus = "fully_verified"
)

// Provenance of a UID record.
type AddedBy string

const (
	AddedByUser  AddedBy = "user"
	AddedByAdmin AddedBy = "admin"
)

// UIDRecord is one row per distinct UID ever submitted.
// ClaimedBy is zero when no user holds the claim.
type UIDRecord struct {
	UID           string
	ClaimedBy     int64
	Username      string
	Status        ClaimStatus
	WalletBalance float64
	HasBalance    bool
	AddedBy       AddedBy
	Flagged       bool
	Notified      bool
	LastUpdated   time.Time
}

type UserStat struct {
	UserID        int64
	Username      string
	FirstSeen     string
	LastSeen      string
	Blocked       bool
	BlockedByUser bool
}

type GiftCode struct {
	ID        int64
	Code      string
	Active    bool
	UpdatedAt string
}

// Stats is the aggregate report shown to admins and on the ops endpoint.
type Stats struct {
	TotalUsers       int `json:"total_users"`
	BlockedUsers     int `json:"blocked_users"`
	TotalUIDs        int `json:"total_uids"`
	ClaimedUIDs      int `json:"claimed_uids"`
	FullyVerified    int `json:"fully_verified"`
	PendingApproval  int `json:"pending_approval"`
	AdminAdded       int `json:"admin_added"`
	QualifiedBalance int `json:"qualified_balance"`
}
