package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that overwrites a wallet balance when using the in-memory ledger.
func SeedBalance(l Ledger, name string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[name]
		w.Balance = amount
		mem.wallets[name] = w
	}
}
