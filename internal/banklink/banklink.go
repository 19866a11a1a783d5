// Package banklink produces linked wallet accounts. The real integration does
// not exist; SimulatedSource stands in behind the BalanceSource interface so
// a genuine provider client can replace it without touching any aggregation
// math.
package banklink

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"khata/internal/core"
)

// BalanceSource fetches the current balance for a provider account.
type BalanceSource interface {
	FetchBalance(ctx context.Context, provider core.Provider) (core.Money, error)
}

// SimulatedSource fabricates a balance after a fixed delay, imitating the
// latency of a provider handshake. The delay always resolves; no cancellation
// is required.
type SimulatedSource struct {
	Delay time.Duration
	rng   *rand.Rand
}

func NewSimulatedSource(delay time.Duration) *SimulatedSource {
	return &SimulatedSource{
		Delay: delay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchBalance waits out the simulated latency and returns a balance between
// 5,000 and 55,000 whole units.
func (s *SimulatedSource) FetchBalance(ctx context.Context, provider core.Provider) (core.Money, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return core.Money{}, ctx.Err()
		}
	}
	units := int64(s.rng.Intn(50000)) + 5000
	return core.Money{Cents: units * 100}, nil
}

// Linker turns a provider choice into a ready BankAccount. Concurrent link
// attempts for the same provider coalesce onto one in-flight fetch, so a
// double tap never creates duplicate simulated accounts.
type Linker struct {
	source BalanceSource
	group  singleflight.Group
	newID  func() string
}

func NewLinker(source BalanceSource) *Linker {
	return &Linker{source: source, newID: uuid.NewString}
}

// Link fetches a balance for the provider and materializes the wallet
// account. The returned account is not yet stored; the caller owns that.
func (l *Linker) Link(ctx context.Context, provider core.Provider) (core.BankAccount, error) {
	if !provider.Valid() {
		return core.BankAccount{}, core.ErrInvalidProvider
	}

	v, err, shared := l.group.Do(string(provider), func() (any, error) {
		balance, err := l.source.FetchBalance(ctx, provider)
		if err != nil {
			return nil, fmt.Errorf("fetch %s balance: %w", provider, err)
		}
		return core.BankAccount{
			ID:       l.newID(),
			Provider: provider,
			Name:     strings.ToUpper(string(provider)) + " Wallet",
			Balance:  balance,
			Color:    providerColor(provider),
			Type:     core.AccountUPI,
		}, nil
	})
	if err != nil {
		return core.BankAccount{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Coalesced concurrent link attempt", "provider", provider)
	}
	return v.(core.BankAccount), nil
}

func providerColor(p core.Provider) string {
	switch p {
	case core.ProviderGPay:
		return "bg-indigo-600"
	case core.ProviderPhonePe:
		return "bg-purple-600"
	default:
		return "bg-slate-900"
	}
}
