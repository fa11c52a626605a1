/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// =============================================================================
// MEMBER TYPES
// =============================================================================

// MemberDTO represents a member profile in API responses.
type MemberDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Tier          string `json:"tier"`
	PackageStatus string `json:"package_status"`
	SponsorID     string `json:"sponsor_id,omitempty"`
	Position      string `json:"position,omitempty"`
	PairingLeft   int64  `json:"pairing_left"`
	PairingRight  int64  `json:"pairing_right"`
	CareerLevel   string `json:"career_level"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// RegisterMemberRequest enrolls a member under a sponsor.
type RegisterMemberRequest struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Tier      string `json:"tier"`
	SponsorID string `json:"sponsor_id"`
	Position  string `json:"position"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// EntryDTO represents a point ledger entry in API responses.
type EntryDTO struct {
	ID            string `json:"id"`
	MemberID      string `json:"member_id"`
	Leg           string `json:"leg"`
	Points        int64  `json:"points"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	Date          string `json:"date"`
	Source        string `json:"source"`
	ReferenceID   string `json:"reference_id,omitempty"`
}

// CreditRequest posts pairing points to a member's leg.
type CreditRequest struct {
	MemberID    string `json:"member_id"`
	Leg         string `json:"leg"`
	Points      int64  `json:"points"`
	Date        string `json:"date"`
	Source      string `json:"source"`
	ReferenceID string `json:"reference_id"`
}

// =============================================================================
// BONUS AND WALLET TYPES
// =============================================================================

// BonusDTO represents a bonus record in API responses.
type BonusDTO struct {
	ID            string `json:"id"`
	MemberID      string `json:"member_id"`
	Kind          string `json:"kind"`
	Amount        int64  `json:"amount"`
	EWalletAmount int64  `json:"ewallet_amount"`
	CashAmount    int64  `json:"cash_amount"`
	Status        string `json:"status"`
	BonusDate     string `json:"bonus_date"`
	Period        string `json:"period"`
	RunID         string `json:"run_id,omitempty"`
	DecidedBy     string `json:"decided_by,omitempty"`
	RejectReason  string `json:"reject_reason,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// DecideBonusRequest carries the admin decision on a pending bonus.
type DecideBonusRequest struct {
	AdminID string `json:"admin_id"`
	Reason  string `json:"reason,omitempty"`
}

// WalletDTO is a member's balance plus recent transaction log.
type WalletDTO struct {
	MemberID     string           `json:"member_id"`
	Balance      int64            `json:"balance"`
	Transactions []TransactionDTO `json:"transactions"`
}

// TransactionDTO represents one wallet log entry.
type TransactionDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Amount    int64  `json:"amount"`
	BonusID   string `json:"bonus_id,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// RUN TYPES
// =============================================================================

// TriggerDailyRequest starts (or retries) the daily settlement for a date.
type TriggerDailyRequest struct {
	Date  string `json:"date"`
	Retry bool   `json:"retry"`
}

// TriggerMonthlyRequest starts a monthly settlement for a closed period.
type TriggerMonthlyRequest struct {
	Month int    `json:"month"`
	Year  int    `json:"year"`
	Kind  string `json:"kind"`
}

// RunDTO represents a daily or monthly run in API responses.
type RunDTO struct {
	ID               string           `json:"id"`
	Key              string           `json:"key"`
	Kind             string           `json:"kind,omitempty"`
	Status           string           `json:"status"`
	Totals           map[string]int64 `json:"totals"`
	BonusCount       int              `json:"bonus_count"`
	MembersProcessed int              `json:"members_processed"`
	MembersSkipped   int              `json:"members_skipped"`
	StartedAt        string           `json:"started_at"`
	CompletedAt      string           `json:"completed_at,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
