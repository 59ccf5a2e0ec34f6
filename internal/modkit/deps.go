// Package modkit wires modules: shared deps, build options and route mounting
package modkit

import (
	"penwatch/internal/modkit/repokit"
	"penwatch/internal/platform/config"
	"penwatch/internal/platform/logger"
	"penwatch/internal/platform/store"
)

// Deps holds the shared dependencies handed to every module
// PG and CH are nil when the backend is not configured
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}
