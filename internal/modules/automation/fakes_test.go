package automation

import (
	"context"
	"errors"
	"sync"

	"github.com/helmfi/helm/internal/domain"
)

// fakeLedger is a minimal in-memory ledger for handler tests.
type fakeLedger struct {
	mu           sync.Mutex
	available    float64
	portfolio    domain.Portfolio
	strategies   []domain.Strategy
	harvests     map[string]float64 // strategyID -> amount
	transactions []domain.Transaction

	strategyCredits map[string]float64
	strategyDebits  map[string]float64

	failBalance  error
	failCredit   error
	failHarvest  map[string]error
	failAddTx    error
	failDebit    error
	failGetPort  error
	failStrategy error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		harvests:        make(map[string]float64),
		strategyCredits: make(map[string]float64),
		strategyDebits:  make(map[string]float64),
		failHarvest:     make(map[string]error),
	}
}

func (l *fakeLedger) GetBalance(context.Context, string) (domain.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failBalance != nil {
		return domain.Balance{}, l.failBalance
	}
	return domain.Balance{Available: l.available, Total: l.available}, nil
}

func (l *fakeLedger) GetPortfolio(context.Context, string) (domain.Portfolio, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failGetPort != nil {
		return domain.Portfolio{}, l.failGetPort
	}
	return l.portfolio, nil
}

func (l *fakeLedger) CreditAvailable(_ context.Context, _ string, amount float64, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCredit != nil {
		return l.failCredit
	}
	l.available += amount
	return nil
}

func (l *fakeLedger) CreditStrategy(_ context.Context, _ string, strategyID string, amount float64, _ map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCredit != nil {
		return l.failCredit
	}
	l.available -= amount
	l.strategyCredits[strategyID] += amount
	return nil
}

func (l *fakeLedger) DebitStrategy(_ context.Context, _ string, strategyID string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failDebit != nil {
		return l.failDebit
	}
	l.strategyDebits[strategyID] += amount
	l.available += amount
	return nil
}

func (l *fakeLedger) Harvest(_ context.Context, _ string, strategyID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failHarvest[strategyID]; err != nil {
		return 0, err
	}
	amount, ok := l.harvests[strategyID]
	if !ok {
		return 0, errors.New("nothing to harvest")
	}
	return amount, nil
}

func (l *fakeLedger) AddTransaction(_ context.Context, tx domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAddTx != nil {
		return l.failAddTx
	}
	l.transactions = append(l.transactions, tx)
	return nil
}

func (l *fakeLedger) GetActiveStrategies(context.Context, string) ([]domain.Strategy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failStrategy != nil {
		return nil, l.failStrategy
	}
	return l.strategies, nil
}

func (l *fakeLedger) GetTransactions(context.Context, string) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transactions, nil
}

// healthyDirectory reports every protocol as healthy and low-risk.
type healthyDirectory struct{}

func (healthyDirectory) GetProtocolHealth(_ context.Context, id string) (domain.ProtocolHealth, error) {
	return domain.ProtocolHealth{ProtocolID: id, Healthy: true, RiskScore: 20}, nil
}

// testMarket serves static stats without a market service.
type testMarket struct{}

func (testMarket) Volatility(asset string) float64 {
	if asset == "USDC" {
		return 0.5
	}
	return 80
}

func (testMarket) LiquidityScore(string) float64 { return 0.95 }

func (testMarket) IsStablecoin(asset string) bool { return asset == "USDC" }

func (testMarket) Correlation(a, b string) float64 {
	if a == b {
		return 1
	}
	return 0.5
}
