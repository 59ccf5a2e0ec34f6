package modkit

import "penwatch/internal/modkit/module"

// Module is the contract every API module satisfies
type Module = module.Module
