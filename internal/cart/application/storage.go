package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmehra2102/restaurant-ordering/internal/cart/domain"
)

// TieredStore is the cart storage policy: the cache answers reads and takes
// writes first, the backup is mirrored in the background and is only read on
// a cache miss or cache failure. Cache errors never reach the caller.
type TieredStore struct {
	log           *slog.Logger
	cache         CartStore
	backup        CartStore
	mirrorTimeout time.Duration
	mirrors       sync.WaitGroup

	// stale holds carts whose cache entry could not be removed on Delete.
	// Their cache copy is never served until it is removed or overwritten.
	mu    sync.Mutex
	stale map[string]struct{}
}

func NewTieredStore(log *slog.Logger, cache, backup CartStore) *TieredStore {
	return &TieredStore{
		log:           log,
		cache:         cache,
		backup:        backup,
		mirrorTimeout: 5 * time.Second,
		stale:         map[string]struct{}{},
	}
}

func staleKey(tenantID, userID string) string { return tenantID + "\x00" + userID }

func (s *TieredStore) isStale(tenantID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stale[staleKey(tenantID, userID)]
	return ok
}

func (s *TieredStore) setStale(tenantID, userID string, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stale {
		s.stale[staleKey(tenantID, userID)] = struct{}{}
		return
	}
	delete(s.stale, staleKey(tenantID, userID))
}

func (s *TieredStore) Load(ctx context.Context, tenantID, userID string) (*domain.Cart, error) {
	stale := s.isStale(tenantID, userID)
	if !stale {
		c, err := s.cache.Load(ctx, tenantID, userID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, domain.ErrCartNotFound) {
			s.log.Warn("cart cache read failed, using backup", "tenant_id", tenantID, "user_id", userID, "err", err)
		}
	}

	c, err := s.backup.Load(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			if stale {
				s.invalidate(ctx, tenantID, userID)
			}
			return nil, err
		}
		return nil, fmt.Errorf("load cart backup: %w", err)
	}

	if err := s.cache.Save(ctx, c); err != nil {
		s.log.Warn("cart cache repopulate failed", "tenant_id", tenantID, "user_id", userID, "err", err)
	} else if stale {
		s.setStale(tenantID, userID, false)
	}
	return c, nil
}

// Save writes the cache synchronously and mirrors to the backup without
// blocking. When the cache rejects the write the backup write becomes the
// required one and its failure is returned as domain.ErrPersistence.
func (s *TieredStore) Save(ctx context.Context, c *domain.Cart) error {
	if err := s.cache.Save(ctx, c); err != nil {
		s.log.Warn("cart cache write failed, writing backup", "tenant_id", c.TenantID, "user_id", c.UserID, "err", err)
		s.setStale(c.TenantID, c.UserID, true)
		if err := s.backup.Save(ctx, c); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return nil
	}

	s.setStale(c.TenantID, c.UserID, false)
	s.mirror(ctx, c.Clone())
	return nil
}

func (s *TieredStore) mirror(ctx context.Context, c *domain.Cart) {
	s.mirrors.Add(1)
	go func() {
		defer s.mirrors.Done()
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mirrorTimeout)
		defer cancel()

		if err := s.backup.Save(mctx, c); err != nil {
			s.log.Warn("cart backup mirror failed", "tenant_id", c.TenantID, "user_id", c.UserID, "err", err)
		}
	}()
}

// Delete removes the cart from both tiers. Deleting a missing cart is not an
// error. When the cache entry survives, reads bypass it until a later Load or
// Save replaces or removes it.
func (s *TieredStore) Delete(ctx context.Context, tenantID, userID string) error {
	if err := s.backup.Delete(ctx, tenantID, userID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	s.setStale(tenantID, userID, true)
	s.invalidate(ctx, tenantID, userID)
	return nil
}

// invalidate removes the cache entry, retrying briefly. The cart stays marked
// stale when every attempt fails.
func (s *TieredStore) invalidate(ctx context.Context, tenantID, userID string) {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = s.cache.Delete(ctx, tenantID, userID); err == nil {
			s.setStale(tenantID, userID, false)
			return
		}
		if attempt < 2 {
			select {
			case <-ctx.Done():
				attempt = 3
			case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
			}
		}
	}
	s.log.Error("cart cache delete failed, cache copy will be bypassed", "tenant_id", tenantID, "user_id", userID, "err", err)
}

// Wait blocks until in-flight backup mirrors finish or ctx is done.
func (s *TieredStore) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mirrors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
