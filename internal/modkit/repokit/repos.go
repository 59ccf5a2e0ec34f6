// Package repokit binds repositories to a query surface without importing a driver
package repokit

import "penwatch/internal/platform/store"

type (
	// Queryer is the read and write surface SQL repos are bound to
	Queryer = store.RowQuerier

	// TxRunner is a Queryer that can also run a function in a transaction
	TxRunner = store.TxRunner
)
