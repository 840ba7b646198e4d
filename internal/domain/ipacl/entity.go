package ipacl

import "time"

// Rule kinds. A blacklist match always wins; whitelist rules, once any
// exist, switch the default to deny.
const (
	KindWhitelist = "whitelist"
	KindBlacklist = "blacklist"
)

// AccessRule is one CIDR-based allow/deny entry.
type AccessRule struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	CIDR        string    `gorm:"column:cidr;size:64;uniqueIndex:idx_rules_cidr_kind" json:"cidr"`
	Kind        string    `gorm:"column:kind;size:10;uniqueIndex:idx_rules_cidr_kind" json:"kind"`
	Description string    `gorm:"column:description;size:255" json:"description"`
	Active      bool      `gorm:"column:active" json:"active"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (AccessRule) TableName() string { return "ip_access_rules" }
