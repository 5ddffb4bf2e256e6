package enrich

import (
	"context"
	"fmt"
	"sync"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// Provider fetches external customer and order context for a run. A failed
// fetch degrades the run (constraints become violable) instead of failing
// it, so implementations should return ErrEnrichmentUnavailable rather
// than partial data they cannot vouch for.
type Provider interface {
	FetchContext(ctx context.Context, customerID string, orderIDs []string) (*model.EnrichmentContext, error)
}

// StaticProvider serves enrichment from in-memory records. Used in demos
// and tests, and as the seed-data provider until a commerce backend is
// wired in.
type StaticProvider struct {
	mu        sync.RWMutex
	customers map[string]model.CustomerProfile
	orders    map[string]model.OrderContext
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		customers: make(map[string]model.CustomerProfile),
		orders:    make(map[string]model.OrderContext),
	}
}

// PutCustomer registers or replaces a customer record.
func (p *StaticProvider) PutCustomer(c model.CustomerProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers[c.CustomerID] = c
}

// PutOrder registers or replaces an order record.
func (p *StaticProvider) PutOrder(o model.OrderContext) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders[o.OrderID] = o
}

// FetchContext returns whatever records exist for the ids. Unknown ids are
// simply absent from the result; only an empty result for a non-empty query
// is an error.
func (p *StaticProvider) FetchContext(ctx context.Context, customerID string, orderIDs []string) (*model.EnrichmentContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errx.ErrEnrichmentUnavailable, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	ec := &model.EnrichmentContext{}
	if c, ok := p.customers[customerID]; ok {
		ec.Customer = &c
	}
	for _, id := range orderIDs {
		if o, ok := p.orders[id]; ok {
			ec.Orders = append(ec.Orders, o)
		}
	}

	if ec.Customer == nil && len(ec.Orders) == 0 && (customerID != "" || len(orderIDs) > 0) {
		logx.Debug().
			Str("customer_id", customerID).
			Strs("order_ids", orderIDs).
			Msg("No enrichment records found")
		return nil, fmt.Errorf("%w: no records for query", errx.ErrEnrichmentUnavailable)
	}

	return ec, nil
}

// NopProvider always reports enrichment as unavailable. Runs still complete
// with enrichment-dependent constraints degraded to violable.
type NopProvider struct{}

func (NopProvider) FetchContext(context.Context, string, []string) (*model.EnrichmentContext, error) {
	return nil, errx.ErrEnrichmentUnavailable
}
