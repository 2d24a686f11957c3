package ledger

import "time"

// GenesisHash is the previousHash carried by block 0.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// MaxMetadataBytes caps the canonical JSON size of an entry's metadata.
const MaxMetadataBytes = 16 * 1024

// ActorType identifies what kind of principal performed an action.
type ActorType string

const (
	ActorUser    ActorType = "user"
	ActorSystem  ActorType = "system"
	ActorBot     ActorType = "bot"
	ActorService ActorType = "service"
)

// ParseActorType normalizes a producer-supplied actor type. Unrecognized
// values fall back to ActorSystem so ingestion never fails on them.
func ParseActorType(s string) ActorType {
	switch ActorType(s) {
	case ActorUser, ActorSystem, ActorBot, ActorService:
		return ActorType(s)
	}
	return ActorSystem
}

// Category groups entries by the area of the product they concern.
type Category string

const (
	CategoryUser       Category = "user"
	CategoryMessage    Category = "message"
	CategoryChannel    Category = "channel"
	CategoryAdmin      Category = "admin"
	CategorySecurity   Category = "security"
	CategoryAutomation Category = "automation"
	CategoryOther      Category = "other"
)

// ParseCategory normalizes a producer-supplied category. Unrecognized
// values fall back to CategoryOther.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryUser, CategoryMessage, CategoryChannel, CategoryAdmin,
		CategorySecurity, CategoryAutomation, CategoryOther:
		return Category(s)
	}
	return CategoryOther
}

// Severity grades how serious an event is. The order is meaningful:
// info < warning < error < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// ParseSeverity normalizes a producer-supplied severity. Unrecognized
// values fall back to SeverityInfo.
func ParseSeverity(s string) Severity {
	if _, ok := severityRank[Severity(s)]; ok {
		return Severity(s)
	}
	return SeverityInfo
}

// Rank returns the severity's ordinal position, info lowest.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Well-known actions from the product taxonomy. The set grows with the
// product; entries store the string, so older entries stay readable.
const (
	ActionUserLogin          = "user.login"
	ActionUserLogout         = "user.logout"
	ActionUserCreated        = "user.created"
	ActionUserDeleted        = "user.deleted"
	ActionUserRoleChanged    = "user.role_changed"
	ActionMessageDeleted     = "message.deleted"
	ActionMessageBulkDeleted = "message.bulk_deleted"
	ActionChannelCreated     = "channel.created"
	ActionChannelDeleted     = "channel.deleted"
	ActionConfigChanged      = "config.changed"
	ActionPermissionDenied   = "security.permission_denied"
	ActionWebhookFired       = "automation.webhook_fired"
)

// ValidAction reports whether s is shaped like a taxonomy action:
// two or more dot-separated segments of [a-z0-9_].
func ValidAction(s string) bool {
	if s == "" {
		return false
	}
	segments := 0
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if i == start {
				return false
			}
			segments++
			start = i + 1
			continue
		}
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return segments >= 2
}

// Actor is the principal that performed the recorded action.
type Actor struct {
	ID   string    `json:"id"`
	Type ActorType `json:"type"`
}

// Resource identifies the object an action was performed on.
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Entry is one committed record in the hash chain. Once committed no
// field is ever mutated; tampering is detected by the Integrity Verifier.
type Entry struct {
	BlockNumber  int64          `json:"blockNumber"`
	Timestamp    time.Time      `json:"timestamp"`
	Actor        Actor          `json:"actor"`
	Action       string         `json:"action"`
	Category     Category       `json:"category"`
	Severity     Severity       `json:"severity"`
	Resource     *Resource      `json:"resource,omitempty"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Success      bool           `json:"success"`
	EntryHash    string         `json:"entryHash"`
	PreviousHash string         `json:"previousHash"`
}
