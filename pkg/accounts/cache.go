// Package accounts serves account reads through the cache chain.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fund-transfer/pkg/cache"
	"fund-transfer/pkg/chain"
	"fund-transfer/pkg/ledger"
	"fund-transfer/pkg/logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultTTL is how long account reads stay cached.
const DefaultTTL = 5 * time.Minute

// Loader reads an account from the system of record.
type Loader interface {
	FindAccount(ctx context.Context, accountNumber string) (*ledger.Account, error)
}

// Cache is a read-through account cache. Values are stored as JSON strings so
// every layer round-trips them the same way. A nil chain disables caching.
type Cache struct {
	chain  *chain.Chain
	loader Loader
	ttl    time.Duration
	logger *logging.Logger
}

func NewCache(c *chain.Chain, loader Loader, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		chain:  c,
		loader: loader,
		ttl:    ttl,
		logger: logging.Global().Named("accounts"),
	}
}

type cachedAccount struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"account_number"`
	HolderName    string    `json:"holder_name"`
	Balance       string    `json:"balance"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

func encodeAccount(a *ledger.Account) (string, error) {
	data, err := json.Marshal(cachedAccount{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		HolderName:    a.HolderName,
		Balance:       ledger.FormatAmount(a.Balance),
		Currency:      a.Currency,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		Version:       a.Version,
	})
	return string(data), err
}

func decodeAccount(v interface{}) (*ledger.Account, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %T", cache.ErrInvalidValue, v)
	}
	var ca cachedAccount
	if err := json.Unmarshal([]byte(s), &ca); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrInvalidValue, err)
	}
	balance, err := decimal.NewFromString(ca.Balance)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %q", cache.ErrInvalidValue, ca.Balance)
	}
	return &ledger.Account{
		ID:            ca.ID,
		AccountNumber: ca.AccountNumber,
		HolderName:    ca.HolderName,
		Balance:       balance,
		Currency:      ca.Currency,
		Status:        ledger.AccountStatus(ca.Status),
		CreatedAt:     ca.CreatedAt,
		UpdatedAt:     ca.UpdatedAt,
		Version:       ca.Version,
	}, nil
}

// GetAccount returns the account, from cache when possible. A missing account
// is an ErrNotFound error and is not cached.
func (c *Cache) GetAccount(ctx context.Context, accountNumber string) (*ledger.Account, error) {
	if c.chain == nil {
		return c.loader.FindAccount(ctx, accountNumber)
	}

	key := cache.AccountKey(accountNumber)
	v, err := c.chain.GetOrLoad(ctx, key, c.ttl, func(ctx context.Context) (interface{}, error) {
		a, err := c.loader.FindAccount(ctx, accountNumber)
		if err != nil {
			return nil, err
		}
		return encodeAccount(a)
	})
	if err != nil {
		return nil, err
	}

	a, err := decodeAccount(v)
	if err != nil {
		c.discard(ctx, key, err)
		return c.loader.FindAccount(ctx, accountNumber)
	}
	return a, nil
}

// GetBalance returns the account balance, from cache when possible.
func (c *Cache) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	if c.chain == nil {
		a, err := c.loader.FindAccount(ctx, accountNumber)
		if err != nil {
			return decimal.Zero, err
		}
		return a.Balance, nil
	}

	key := cache.BalanceKey(accountNumber)
	v, err := c.chain.GetOrLoad(ctx, key, c.ttl, func(ctx context.Context) (interface{}, error) {
		a, err := c.loader.FindAccount(ctx, accountNumber)
		if err != nil {
			return nil, err
		}
		return ledger.FormatAmount(a.Balance), nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s, _ := v.(string)
	balance, err := decimal.NewFromString(s)
	if err != nil {
		c.discard(ctx, key, err)
		a, err := c.loader.FindAccount(ctx, accountNumber)
		if err != nil {
			return decimal.Zero, err
		}
		return a.Balance, nil
	}
	return balance, nil
}

// Invalidate removes the cached account and balance of every given account.
// All keys are attempted; failures are logged and returned joined.
func (c *Cache) Invalidate(ctx context.Context, accountNumbers ...string) error {
	if c.chain == nil {
		return nil
	}

	var errs []error
	for _, n := range accountNumbers {
		for _, key := range []string{cache.AccountKey(n), cache.BalanceKey(n)} {
			if err := c.chain.Delete(ctx, key); err != nil {
				c.logger.Warn("cache invalidation failed",
					zap.String("key", key),
					zap.Error(err),
				)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Ping checks the cache layers.
func (c *Cache) Ping(ctx context.Context) error {
	if c.chain == nil {
		return nil
	}
	return c.chain.Ping(ctx)
}

func (c *Cache) discard(ctx context.Context, key string, cause error) {
	c.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(cause))
	if err := c.chain.Delete(ctx, key); err != nil {
		c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
