package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/user"
	"fleet-track/internal/ports"
)

// subscriptionBuffer bounds the per-watcher channel. A watcher that
// falls this far behind starts losing updates instead of stalling the
// publisher.
const subscriptionBuffer = 16

type subscription struct {
	id       string
	readerID string
	role     user.Role
	scope    account.Scope
	updates  chan ports.PositionView
	once     sync.Once
}

func (sub *subscription) close() {
	sub.once.Do(func() { close(sub.updates) })
}

type subscriptionRegistry struct {
	mu   sync.RWMutex
	subs map[string]*subscription
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{subs: make(map[string]*subscription)}
}

func (reg *subscriptionRegistry) add(sub *subscription) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.subs[sub.id] = sub
}

// remove deletes and closes the subscription. It is safe to call with
// an unknown or already removed ID.
func (reg *subscriptionRegistry) remove(subscriptionID string) {
	reg.mu.Lock()
	sub, ok := reg.subs[subscriptionID]
	if ok {
		delete(reg.subs, subscriptionID)
	}
	reg.mu.Unlock()

	if ok {
		sub.close()
	}
}

func (reg *subscriptionRegistry) list() []*subscription {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]*subscription, 0, len(reg.subs))
	for _, sub := range reg.subs {
		out = append(out, sub)
	}
	return out
}

// fanout delivers view to every subscription whose scope matches the
// publishing vehicle's account. Delivery is at most once per
// subscriber; a full buffer drops the update for that subscriber only.
func (reg *subscriptionRegistry) fanout(acct *account.Account, view ports.PositionView) (delivered, dropped int) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, sub := range reg.subs {
		if !sub.scope.Matches(acct) {
			continue
		}
		select {
		case sub.updates <- view:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// Subscribe registers a live watch on scope after an access check. The
// subscription is torn down when ctx is cancelled or Unsubscribe is
// called, whichever comes first.
func (svc *trackerService) Subscribe(ctx context.Context, readerID string, role user.Role, scope account.Scope) (*ports.Subscription, error) {
	if err := svc.policy.AuthorizeSubscribe(ctx, readerID, role, scope); err != nil {
		return nil, err
	}

	sub := &subscription{
		id:       uuid.NewString(),
		readerID: readerID,
		role:     role,
		scope:    scope,
		updates:  make(chan ports.PositionView, subscriptionBuffer),
	}
	svc.subs.add(sub)

	go func() {
		<-ctx.Done()
		svc.subs.remove(sub.id)
	}()

	svc.logger.Info(svc.logger.WithUserID(ctx, readerID), "subscription_opened",
		"watch opened on "+scope.String(), map[string]any{"subscription_id": sub.id})

	return &ports.Subscription{
		ID:       sub.id,
		ReaderID: readerID,
		Scope:    scope,
		Updates:  sub.updates,
	}, nil
}

// Unsubscribe removes the subscription and closes its channel.
func (svc *trackerService) Unsubscribe(subscriptionID string) {
	svc.subs.remove(subscriptionID)
}

// runSubscriptionRevalidation re-runs the access check for every open
// subscription on a fixed cadence and revokes the ones no longer
// allowed. Transient lookup failures keep the subscription; it will be
// re-checked on the next tick.
func (svc *trackerService) runSubscriptionRevalidation(ctx context.Context) {
	ticker := time.NewTicker(svc.opts.SubscriptionRevalidationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.revalidateSubscriptions(ctx)
		}
	}
}

// revalidateSubscriptions runs one revalidation pass over every open
// subscription.
func (svc *trackerService) revalidateSubscriptions(ctx context.Context) {
	for _, sub := range svc.subs.list() {
		err := svc.policy.AuthorizeSubscribe(ctx, sub.readerID, sub.role, sub.scope)
		if err == nil || ports.IsTransient(err) {
			continue
		}

		svc.subs.remove(sub.id)
		svc.logger.Info(svc.logger.WithUserID(ctx, sub.readerID), "subscription_revoked",
			"watch on "+sub.scope.String()+" revoked: "+err.Error(), nil)
	}
}
