package bridge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"admin-realtime-service/internal/bridge"
	"admin-realtime-service/internal/domain/event"
	"admin-realtime-service/internal/domain/notification"
	"admin-realtime-service/internal/livechannel"
	"admin-realtime-service/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeChannel records handler registrations and lets tests fire events
// directly, standing in for the live channel read loop.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[event.Type][]livechannel.Handler
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[event.Type][]livechannel.Handler)}
}

func (f *fakeChannel) On(t event.Type, fn livechannel.Handler) func() {
	f.mu.Lock()
	f.handlers[t] = append(f.handlers[t], fn)
	idx := len(f.handlers[t]) - 1
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[t][idx] = nil
	}
}

func (f *fakeChannel) fire(t *testing.T, eventType event.Type, payload interface{}) {
	t.Helper()
	env, err := event.NewEnvelope(eventType, payload)
	require.NoError(t, err)

	f.mu.Lock()
	handlers := append([]livechannel.Handler(nil), f.handlers[eventType]...)
	f.mu.Unlock()

	for _, fn := range handlers {
		if fn != nil {
			fn(env)
		}
	}
}

type recordingCache struct {
	mu       sync.Mutex
	families []string
}

func (c *recordingCache) Invalidate(_ context.Context, family string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.families = append(c.families, family)
	return nil
}

func (c *recordingCache) invalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.families...)
}

func setup(t *testing.T) (*fakeChannel, *notify.Store, *recordingCache, *bridge.Bridge) {
	t.Helper()
	channel := newFakeChannel()
	store := notify.NewStore(zap.NewNop())
	cache := &recordingCache{}
	b := bridge.New(channel, store, cache, zap.NewNop())
	b.BindAll()
	t.Cleanup(b.UnbindAll)
	return channel, store, cache, b
}

func TestOrderUpdated_NotifiesAndInvalidates(t *testing.T) {
	channel, store, cache, _ := setup(t)

	channel.fire(t, event.TypeOrderUpdated, event.Order{OrderNumber: "ORD-42", Status: "shipped"})

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeInfo, list[0].Type)
	assert.Equal(t, "Order Updated", list[0].Title)
	assert.Contains(t, list[0].Message, "ORD-42")
	assert.Contains(t, list[0].Message, "shipped")

	assert.Equal(t, []string{"orders", "dashboard-stats"}, cache.invalidated())
}

func TestOrderCreated_NotifiesAndInvalidates(t *testing.T) {
	channel, store, cache, _ := setup(t)

	channel.fire(t, event.TypeOrderCreated, event.Order{OrderNumber: "ORD-7", Status: "pending"})

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeInfo, list[0].Type)
	assert.Equal(t, "New Order", list[0].Title)
	assert.Equal(t, "Order #ORD-7 has been created", list[0].Message)

	assert.Equal(t, []string{"orders", "dashboard-stats"}, cache.invalidated())
}

func TestInventoryUpdated_LowStockWarns(t *testing.T) {
	channel, store, cache, _ := setup(t)

	channel.fire(t, event.TypeInventoryUpdated, event.StoreInventory{
		ProductID:         "P1",
		QuantityAvailable: 3,
		ReorderLevel:      5,
	})

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeWarning, list[0].Type)
	assert.Equal(t, "Low Stock Alert", list[0].Title)

	assert.Equal(t, []string{"inventory", "low-stock-items"}, cache.invalidated())
}

func TestInventoryUpdated_HealthyStockStaysQuiet(t *testing.T) {
	channel, store, cache, _ := setup(t)

	channel.fire(t, event.TypeInventoryUpdated, event.StoreInventory{
		ProductID:         "P1",
		QuantityAvailable: 10,
		ReorderLevel:      5,
	})

	assert.Zero(t, store.Len())
	// Caches go stale regardless of the threshold.
	assert.Equal(t, []string{"inventory", "low-stock-items"}, cache.invalidated())
}

func TestInventoryUpdated_AtThresholdWarns(t *testing.T) {
	channel, store, _, _ := setup(t)

	channel.fire(t, event.TypeInventoryUpdated, event.StoreInventory{
		ProductID:         "P1",
		QuantityAvailable: 5,
		ReorderLevel:      5,
	})

	require.Equal(t, 1, store.Len())
	assert.Equal(t, notification.TypeWarning, store.List()[0].Type)
}

func TestProductUpdated_NotifiesAndInvalidates(t *testing.T) {
	channel, store, cache, _ := setup(t)

	channel.fire(t, event.TypeProductUpdated, event.Product{ID: "P1", Name: "Espresso Mug"})

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeInfo, list[0].Type)
	assert.Equal(t, "Product Updated", list[0].Title)
	assert.Equal(t, `Product "Espresso Mug" has been updated`, list[0].Message)

	assert.Equal(t, []string{"products"}, cache.invalidated())
}

func TestNotificationNew_PassesThroughVerbatim(t *testing.T) {
	channel, store, cache, _ := setup(t)

	channel.fire(t, event.TypeNotificationNew, notification.Input{
		Type:       notification.TypeSuccess,
		Title:      "Export Ready",
		Message:    "Your sales report is ready to download.",
		DurationMs: 8000,
	})

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeSuccess, list[0].Type)
	assert.Equal(t, "Export Ready", list[0].Title)
	assert.Equal(t, "Your sales report is ready to download.", list[0].Message)
	assert.Equal(t, 8000, list[0].DurationMs)

	assert.Empty(t, cache.invalidated())
}

func TestRepeatedEventsProduceRepeatedNotifications(t *testing.T) {
	channel, store, _, _ := setup(t)

	for i := 0; i < 3; i++ {
		channel.fire(t, event.TypeOrderCreated, event.Order{OrderNumber: "ORD-9"})
	}

	assert.Equal(t, 3, store.Len())
}

func TestBindAll_RegistersAllSubscriptionsOnRealManager(t *testing.T) {
	m := livechannel.NewManager(livechannel.Config{
		URL:              "ws://localhost:0",
		ResubscribeDelay: time.Second,
	}, staticTokens{}, zap.NewNop())
	store := notify.NewStore(zap.NewNop())
	b := bridge.New(m, store, &recordingCache{}, zap.NewNop())

	b.BindAll()
	for _, et := range []event.Type{
		event.TypeOrderCreated,
		event.TypeOrderUpdated,
		event.TypeInventoryUpdated,
		event.TypeProductUpdated,
		event.TypeNotificationNew,
	} {
		assert.Equal(t, 1, m.HandlerCount(et), "missing handler for %s", et)
	}

	b.UnbindAll()
	for _, et := range []event.Type{
		event.TypeOrderCreated,
		event.TypeOrderUpdated,
		event.TypeInventoryUpdated,
		event.TypeProductUpdated,
		event.TypeNotificationNew,
	} {
		assert.Zero(t, m.HandlerCount(et), "leaked handler for %s", et)
	}

	// Second UnbindAll is a no-op.
	assert.NotPanics(t, b.UnbindAll)
}

type staticTokens struct{}

func (staticTokens) IsAuthenticated() bool { return false }
func (staticTokens) AccessToken() string   { return "" }
