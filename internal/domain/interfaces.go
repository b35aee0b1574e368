package domain

import "context"

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// External systems the engine consumes. Infrastructure implements them;
// the engagement layer depends only on these.

// LocationHint narrows a generated quest to a place.
type LocationHint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PlaceName string  `json:"place_name,omitempty"`
}

// GenerateRequest asks the generation service for one quest.
type GenerateRequest struct {
	Category   string
	Difficulty Difficulty
	Prompt     string
	UserID     string
	Location   *LocationHint
}

// QuestGenerator produces quest templates. It must tolerate many calls per
// sweep; callers treat its failures as soft.
type QuestGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (QuestTemplate, error)
}

// PushGateway delivers one push message. Delivery is best-effort and never
// retried by the engine.
type PushGateway interface {
	Name() string
	Send(ctx context.Context, msg PushMessage) PushResult
}

// CurrencyLedger moves a user's currency balance.
type CurrencyLedger interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Grant(ctx context.Context, userID string, amount int64, txType TxType, reference, reason string) error
	Debit(ctx context.Context, userID string, amount int64, txType TxType, reference, reason string) error
}
