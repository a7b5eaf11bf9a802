package querycache

import "context"

// Key families invalidated in bulk by the event bridge. A family groups the
// cached query results for one screen-level data set, not an individual entry.
const (
	FamilyOrders         = "orders"
	FamilyDashboardStats = "dashboard-stats"
	FamilyInventory      = "inventory"
	FamilyLowStockItems  = "low-stock-items"
	FamilyProducts       = "products"
)

// Cache marks cached query results stale so the data-fetching layer refetches
// them on next read.
type Cache interface {
	Invalidate(ctx context.Context, family string) error
}
