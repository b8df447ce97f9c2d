package handlers

import (
	"cafe-order-service/internal/catalog"
	"cafe-order-service/internal/config"
	"cafe-order-service/internal/ledger"
	"cafe-order-service/internal/reconcile"
	"cafe-order-service/internal/tables"

	"go.uber.org/zap"
)

type Handler struct {
	Logger  *zap.Logger
	Config  config.Config
	Catalog *catalog.Catalog
	Tables  *tables.Registry
	Ledger  *ledger.Ledger
	Seats   *reconcile.Engine
}
