package bridge

import (
	"context"

	"admin-realtime-service/internal/domain/event"
	"admin-realtime-service/internal/domain/notification"
	"admin-realtime-service/internal/livechannel"
	"admin-realtime-service/internal/notify"
	"admin-realtime-service/internal/querycache"

	"go.uber.org/zap"
)

// Channel is the slice of the live channel manager the bridge depends on.
type Channel interface {
	On(t event.Type, fn livechannel.Handler) func()
}

// Bridge maps inbound domain events to notification-store writes and
// data-cache invalidations. Handlers run on the channel read loop, so both
// effects complete before the next event is processed.
type Bridge struct {
	channel       Channel
	notifications *notify.Store
	cache         querycache.Cache
	logger        *zap.Logger

	unsubscribes []func()
}

func New(channel Channel, notifications *notify.Store, cache querycache.Cache, logger *zap.Logger) *Bridge {
	return &Bridge{
		channel:       channel,
		notifications: notifications,
		cache:         cache,
		logger:        logger,
	}
}

// BindAll registers the full set of domain event handlers. The subscriptions
// are established together and torn down together by UnbindAll so no handler
// leaks across reconnect cycles.
func (b *Bridge) BindAll() {
	b.unsubscribes = []func(){
		b.channel.On(event.TypeOrderCreated, b.handleOrderCreated),
		b.channel.On(event.TypeOrderUpdated, b.handleOrderUpdated),
		b.channel.On(event.TypeInventoryUpdated, b.handleInventoryUpdated),
		b.channel.On(event.TypeProductUpdated, b.handleProductUpdated),
		b.channel.On(event.TypeNotificationNew, b.handleNotification),
	}
}

// UnbindAll deregisters every handler registered by BindAll. Idempotent.
func (b *Bridge) UnbindAll() {
	for _, unsub := range b.unsubscribes {
		unsub()
	}
	b.unsubscribes = nil
}

func (b *Bridge) handleOrderCreated(env *event.Envelope) {
	var order event.Order
	if err := env.Decode(&order); err != nil {
		b.logger.Warn("malformed order payload", zap.Error(err))
	} else {
		b.notifications.Add(notification.Input{
			Type:       notification.TypeInfo,
			Title:      "New Order",
			Message:    "Order #" + order.OrderNumber + " has been created",
			DurationMs: 5000,
		})
	}

	b.invalidate(querycache.FamilyOrders, querycache.FamilyDashboardStats)
}

func (b *Bridge) handleOrderUpdated(env *event.Envelope) {
	var order event.Order
	if err := env.Decode(&order); err != nil {
		b.logger.Warn("malformed order payload", zap.Error(err))
	} else {
		b.notifications.Add(notification.Input{
			Type:       notification.TypeInfo,
			Title:      "Order Updated",
			Message:    "Order #" + order.OrderNumber + " status changed to " + order.Status,
			DurationMs: 5000,
		})
	}

	b.invalidate(querycache.FamilyOrders, querycache.FamilyDashboardStats)
}

func (b *Bridge) handleInventoryUpdated(env *event.Envelope) {
	var inv event.StoreInventory
	if err := env.Decode(&inv); err != nil {
		b.logger.Warn("malformed inventory payload", zap.Error(err))
	} else if inv.QuantityAvailable <= inv.ReorderLevel {
		b.notifications.Add(notification.Input{
			Type:       notification.TypeWarning,
			Title:      "Low Stock Alert",
			Message:    "Product inventory is running low",
			DurationMs: 10000,
		})
	}

	b.invalidate(querycache.FamilyInventory, querycache.FamilyLowStockItems)
}

func (b *Bridge) handleProductUpdated(env *event.Envelope) {
	var product event.Product
	if err := env.Decode(&product); err != nil {
		b.logger.Warn("malformed product payload", zap.Error(err))
	} else {
		b.notifications.Add(notification.Input{
			Type:       notification.TypeInfo,
			Title:      "Product Updated",
			Message:    `Product "` + product.Name + `" has been updated`,
			DurationMs: 3000,
		})
	}

	b.invalidate(querycache.FamilyProducts)
}

// handleNotification passes an explicit notification event through verbatim.
// No cache families correspond to it.
func (b *Bridge) handleNotification(env *event.Envelope) {
	var input notification.Input
	if err := env.Decode(&input); err != nil {
		b.logger.Warn("malformed notification payload", zap.Error(err))
		return
	}
	b.notifications.Add(input)
}

// invalidate marks the given families stale. Failures are logged only: cache
// staleness heals on the next TTL expiry and must not break event handling.
func (b *Bridge) invalidate(families ...string) {
	ctx := context.Background()
	for _, family := range families {
		if err := b.cache.Invalidate(ctx, family); err != nil {
			b.logger.Warn("cache invalidation failed",
				zap.String("family", family),
				zap.Error(err),
			)
		}
	}
}
