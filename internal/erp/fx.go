package erp

import "go.uber.org/fx"

var Module = fx.Module("erp",
	fx.Provide(NewInvoiceLookup),
)
