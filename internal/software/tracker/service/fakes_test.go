package service

import (
	"context"
	"sort"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/geo"
	"fleet-track/internal/general/logger"
	"fleet-track/internal/ports"
)

// fakeAccounts is an in-memory account registry with failure injection.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]account.Account
	failWith error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[string]account.Account)}
}

func (f *fakeAccounts) put(acct account.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[acct.UserID] = acct
}

func (f *fakeAccounts) setActive(userID string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct := f.accounts[userID]
	acct.Active = active
	f.accounts[userID] = acct
}

func (f *fakeAccounts) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeAccounts) Lookup(_ context.Context, userID string) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return nil, f.failWith
	}

	acct, ok := f.accounts[userID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copied := acct
	return &copied, nil
}

// fakePositions is an in-memory position repository. It mirrors the
// database guard: a row never regresses behind its stored recorded_at.
type fakePositions struct {
	mu       sync.Mutex
	rows     map[string]geo.Position
	accounts *fakeAccounts
}

func newFakePositions(accounts *fakeAccounts) *fakePositions {
	return &fakePositions{rows: make(map[string]geo.Position), accounts: accounts}
}

func (f *fakePositions) Upsert(_ context.Context, p *geo.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.rows[p.UserID]; ok && p.RecordedAt.Before(prev.RecordedAt) {
		return nil
	}
	f.rows[p.UserID] = *p
	return nil
}

func (f *fakePositions) Get(_ context.Context, userID string) (*geo.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.rows[userID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copied := p
	return &copied, nil
}

func (f *fakePositions) ListByScope(_ context.Context, companyID, routeID string) ([]*geo.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()

	var out []*geo.Position
	for userID, p := range f.rows {
		acct, ok := f.accounts.accounts[userID]
		if !ok || acct.CompanyID != companyID || acct.RouteID != routeID {
			continue
		}
		copied := p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type publishedMessage struct {
	Exchange   string
	RoutingKey string
	Body       []byte
}

// fakeBroker records everything published to it.
type fakeBroker struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (f *fakeBroker) Publish(exchange, routingKey string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{Exchange: exchange, RoutingKey: routingKey, Body: body})
	return nil
}

func (f *fakeBroker) byExchange(exchange string) []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []publishedMessage
	for _, m := range f.messages {
		if m.Exchange == exchange {
			out = append(out, m)
		}
	}
	return out
}

// newTestService builds a tracker service on in-memory fakes.
func newTestService(opts Options) (*trackerService, *fakeAccounts, *fakePositions, *fakeBroker) {
	accounts := newFakeAccounts()
	positions := newFakePositions(accounts)
	broker := &fakeBroker{}

	svc := NewTrackerService(
		logger.New("tracker-test"),
		opts,
		NewRegistryPolicy(accounts),
		positions,
		broker,
		nil,
	).(*trackerService)

	return svc, accounts, positions, broker
}

func deliveryWithBody(body []byte) amqp.Delivery {
	return amqp.Delivery{Body: body}
}

func activeAccount(userID, companyID, routeID string) account.Account {
	return account.Account{
		UserID:    userID,
		Active:    true,
		CompanyID: companyID,
		RouteID:   routeID,
	}
}
