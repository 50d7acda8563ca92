// Package routingtest provides in-memory implementations of the routing
// repositories, locker and publisher for tests.
package routingtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/routing/domain/models"

	"github.com/google/uuid"
)

// Clock returns strictly increasing timestamps so ordering by time is stable.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		c.now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	}
	c.now = c.now.Add(time.Second)
	return c.now
}

type StoreRepo struct {
	mu     sync.Mutex
	clock  *Clock
	stores []models.Store

	// Err, when set, is returned by every call.
	Err error
}

func NewStoreRepo(clock *Clock) *StoreRepo {
	return &StoreRepo{clock: clock}
}

func (r *StoreRepo) Create(_ context.Context, name, passwordHash string) (models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.Store{}, r.Err
	}
	for _, s := range r.stores {
		if strings.EqualFold(s.Name, name) {
			return models.Store{}, core.ErrStoreExists
		}
	}
	now := r.clock.Now()
	s := models.Store{ID: uuid.NewString(), Name: name, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	r.stores = append(r.stores, s)
	return s, nil
}

// Add inserts a store as is, bypassing the unique name rule.
func (r *StoreRepo) Add(name string) models.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	s := models.Store{ID: uuid.NewString(), Name: name, PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	r.stores = append(r.stores, s)
	return s
}

func (r *StoreRepo) Get(_ context.Context, id string) (models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.Store{}, r.Err
	}
	for _, s := range r.stores {
		if s.ID == id {
			return s, nil
		}
	}
	return models.Store{}, core.ErrStoreNotFound
}

func (r *StoreRepo) List(_ context.Context) ([]models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]models.Store(nil), r.stores...), nil
}

func (r *StoreRepo) exists(id string) (models.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		if s.ID == id {
			return s, true
		}
	}
	return models.Store{}, false
}

type OrderRepo struct {
	mu      sync.Mutex
	clock   *Clock
	stores  *StoreRepo
	orders  map[string]models.Order
	ids     []string
	history map[string][]models.OrderStatusLog
	seq     map[string]int

	// Err, when set, is returned by every call.
	Err error
	// AssignErr fails Assign for the given order ids.
	AssignErr map[string]error
	// OnAssign runs before Assign takes effect, outside the repo lock.
	OnAssign func(orderID string)
}

func NewOrderRepo(clock *Clock, stores *StoreRepo) *OrderRepo {
	return &OrderRepo{
		clock:     clock,
		stores:    stores,
		orders:    map[string]models.Order{},
		history:   map[string][]models.OrderStatusLog{},
		seq:       map[string]int{},
		AssignErr: map[string]error{},
	}
}

func (r *OrderRepo) Create(_ context.Context, order models.Order) (models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.Order{}, r.Err
	}
	return r.insert(order, core.ChangedByIntake), nil
}

// Seed stores an order as given. Empty id, code, status and timestamps are
// filled in.
func (r *OrderRepo) Seed(order models.Order) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(order, core.ChangedByIntake)
}

func (r *OrderRepo) insert(order models.Order, changedBy string) models.Order {
	now := r.clock.Now()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	if order.OrderCode == "" {
		day := now.Format("20060102")
		r.seq[day]++
		order.OrderCode = fmt.Sprintf("ORD_%s_%03d", day, r.seq[day])
	}
	if order.Items == nil {
		order.Items = []models.Item{}
	}
	order.CreatedAt, order.UpdatedAt = now, now
	r.orders[order.ID] = order
	r.ids = append(r.ids, order.ID)
	r.history[order.ID] = append(r.history[order.ID], models.OrderStatusLog{
		OrderID: order.ID, Status: order.Status, ChangedBy: changedBy, ChangedAt: now,
	})
	return order
}

func (r *OrderRepo) Get(_ context.Context, id string) (models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.Order{}, r.Err
	}
	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, core.ErrOrderNotFound
	}
	return o, nil
}

func (r *OrderRepo) List(_ context.Context, filter models.OrderFilter) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	var out []models.Order
	for i := len(r.ids) - 1; i >= 0; i-- {
		o := r.orders[r.ids[i]]
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.StoreID != "" && (o.AssignedStoreID == nil || *o.AssignedStoreID != filter.StoreID) {
			continue
		}
		out = append(out, o)
	}
	if filter.Offset >= len(out) {
		return []models.Order{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *OrderRepo) ListUnassigned(_ context.Context) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	var out []models.Order
	for _, id := range r.ids {
		if o := r.orders[id]; o.IsUnassigned() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *OrderRepo) Stats(_ context.Context, storeID string) (models.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.OrderStats{}, r.Err
	}

	var stats models.OrderStats
	for _, o := range r.orders {
		if storeID != "" && (o.AssignedStoreID == nil || *o.AssignedStoreID != storeID) {
			continue
		}
		stats.Add(o.Status, 1)
	}
	return stats, nil
}

func (r *OrderRepo) StatsByStore(ctx context.Context) ([]models.StoreStats, error) {
	stores, err := r.stores.List(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	out := make([]models.StoreStats, 0, len(stores))
	for _, s := range stores {
		row := models.StoreStats{StoreID: s.ID, StoreName: s.Name}
		for _, o := range r.orders {
			if o.AssignedStoreID != nil && *o.AssignedStoreID == s.ID {
				row.Add(o.Status, 1)
			}
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StoreName < out[j].StoreName })
	return out, nil
}

func (r *OrderRepo) History(_ context.Context, id string) ([]models.OrderStatusLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if _, ok := r.orders[id]; !ok {
		return nil, core.ErrOrderNotFound
	}
	return append([]models.OrderStatusLog(nil), r.history[id]...), nil
}

func (r *OrderRepo) Assign(_ context.Context, orderID, storeID, changedBy string, onlyUnassigned bool) (models.StatusChange, error) {
	if r.OnAssign != nil {
		r.OnAssign(orderID)
	}
	if r.stores != nil {
		if _, ok := r.stores.exists(storeID); !ok {
			return models.StatusChange{}, core.ErrStoreNotFound
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.StatusChange{}, r.Err
	}
	if err := r.AssignErr[orderID]; err != nil {
		return models.StatusChange{}, err
	}

	o, ok := r.orders[orderID]
	if !ok {
		return models.StatusChange{}, core.ErrOrderNotFound
	}
	if onlyUnassigned && !o.IsUnassigned() {
		return models.StatusChange{}, core.ErrAlreadyAssigned
	}
	if o.Status == models.StatusDelivered || o.Status == models.StatusReturned {
		return models.StatusChange{}, core.ErrInvalidTransition
	}

	old := o.Status
	sid := storeID
	o.AssignedStoreID = &sid
	o.Status = models.StatusAssigned
	o.UpdatedAt = r.clock.Now()
	r.orders[orderID] = o
	r.history[orderID] = append(r.history[orderID], models.OrderStatusLog{
		OrderID: orderID, Status: o.Status, ChangedBy: changedBy, ChangedAt: o.UpdatedAt,
	})
	return models.StatusChange{Order: o, OldStatus: old, ChangedBy: changedBy}, nil
}

func (r *OrderRepo) UpdateStatus(_ context.Context, orderID, storeID, status, changedBy, note string) (models.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.StatusChange{}, r.Err
	}

	o, ok := r.orders[orderID]
	if !ok {
		return models.StatusChange{}, core.ErrOrderNotFound
	}
	if storeID != "" && (o.AssignedStoreID == nil || *o.AssignedStoreID != storeID) {
		return models.StatusChange{}, core.ErrOrderNotInStore
	}
	if !core.CanTransition(o.Status, status) {
		return models.StatusChange{}, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, o.Status, status)
	}

	old := o.Status
	o.Status = status
	o.UpdatedAt = r.clock.Now()
	r.orders[orderID] = o
	r.history[orderID] = append(r.history[orderID], models.OrderStatusLog{
		OrderID: orderID, Status: status, ChangedBy: changedBy, ChangedAt: o.UpdatedAt, Note: note,
	})
	return models.StatusChange{Order: o, OldStatus: old, ChangedBy: changedBy}, nil
}

type SettingsRepo struct {
	mu       sync.Mutex
	settings models.Settings

	// Err, when set, is returned by every call.
	Err error
}

func NewSettingsRepo(enabled bool) *SettingsRepo {
	return &SettingsRepo{settings: models.Settings{AutoAssignEnabled: enabled}}
}

func (r *SettingsRepo) Get(_ context.Context) (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.Settings{}, r.Err
	}
	return r.settings, nil
}

func (r *SettingsRepo) SetAutoAssign(_ context.Context, enabled bool) (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return models.Settings{}, r.Err
	}
	r.settings.AutoAssignEnabled = enabled
	r.settings.UpdatedAt = time.Now().UTC()
	return r.settings, nil
}

// Locker is a process local stand-in for the advisory lock.
type Locker struct {
	mu   sync.Mutex
	held bool

	Err error
}

func (l *Locker) TryLock(_ context.Context) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, false, l.Err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func() {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}, true, nil
}

func (l *Locker) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	messages []dto.StatusUpdateMessage

	Err error
}

func (p *Publisher) PublishStatusUpdate(_ context.Context, msg dto.StatusUpdateMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *Publisher) Close() error { return nil }

func (p *Publisher) Messages() []dto.StatusUpdateMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dto.StatusUpdateMessage(nil), p.messages...)
}

// Env bundles fakes sharing one clock.
type Env struct {
	Clock     *Clock
	Stores    *StoreRepo
	Orders    *OrderRepo
	Settings  *SettingsRepo
	Locker    *Locker
	Publisher *Publisher
}

func NewEnv(autoAssignEnabled bool) *Env {
	clock := &Clock{}
	stores := NewStoreRepo(clock)
	return &Env{
		Clock:     clock,
		Stores:    stores,
		Orders:    NewOrderRepo(clock, stores),
		Settings:  NewSettingsRepo(autoAssignEnabled),
		Locker:    &Locker{},
		Publisher: &Publisher{},
	}
}
