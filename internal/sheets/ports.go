package sheets

import (
	"context"

	"kakeibo/internal/core"
)

// Ports for outbound adapters.
type (
	// Table is the durable home of the ledger. Save replaces the whole
	// snapshot; there is no incremental write.
	Table interface {
		Load(ctx context.Context) ([]core.Record, error)
		Save(ctx context.Context, records []core.Record) error
	}

	// TaxonomyReader lists suggested categories for a kind.
	TaxonomyReader interface {
		Categories(ctx context.Context, kind core.Kind) ([]string, error)
	}
)
