package domain

import "context"

// Ledger is the balance/transaction store. It is an external collaborator:
// this engine reads snapshots and requests credits/debits through it, and
// never owns balance state itself.
type Ledger interface {
	// GetBalance returns the user's current balance.
	GetBalance(ctx context.Context, userID string) (Balance, error)

	// GetPortfolio returns a read-only snapshot of the user's portfolio.
	GetPortfolio(ctx context.Context, userID string) (Portfolio, error)

	// CreditAvailable credits the user's available balance.
	CreditAvailable(ctx context.Context, userID string, amount float64, reason string) error

	// CreditStrategy deploys funds into a strategy.
	CreditStrategy(ctx context.Context, userID, strategyID string, amount float64, meta map[string]string) error

	// DebitStrategy withdraws funds from a strategy back to the available
	// balance.
	DebitStrategy(ctx context.Context, userID, strategyID string, amount float64) error

	// Harvest claims accrued rewards from a strategy and returns the
	// harvested amount.
	Harvest(ctx context.Context, userID, strategyID string) (float64, error)

	// AddTransaction records a transaction in the audit trail.
	AddTransaction(ctx context.Context, tx Transaction) error

	// GetActiveStrategies returns the strategies the user currently has
	// funds deployed in.
	GetActiveStrategies(ctx context.Context, userID string) ([]Strategy, error)

	// GetTransactions returns the user's transaction history, oldest first.
	GetTransactions(ctx context.Context, userID string) ([]Transaction, error)
}

// ProtocolDirectory provides yield-protocol health and risk lookups.
type ProtocolDirectory interface {
	GetProtocolHealth(ctx context.Context, protocolID string) (ProtocolHealth, error)
}

// PriceSource provides current asset prices. Implementations may serve
// slightly stale prices from a cache; callers must tolerate that.
type PriceSource interface {
	GetPrice(asset string) (float64, bool)
}
