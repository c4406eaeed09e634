package domain

import "context"

// IngestPort is the ingestion hook: events in, rows buffered
type IngestPort interface {
	OnEvent(ctx context.Context, ev RawEvent) error
	OnEvents(ctx context.Context, evs []RawEvent) IngestResult
}

// DeliveryPort runs one delivery attempt for a batch
type DeliveryPort interface {
	Deliver(ctx context.Context, b Batch) State
	Submit(b Batch)
}

// BootstrapPort prepares the destination table before events flow
type BootstrapPort interface {
	Bootstrap(ctx context.Context) error
}
