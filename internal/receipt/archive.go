package receipt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cafe-order-service/internal/ledger"
	"cafe-order-service/internal/queue"

	"go.uber.org/zap"
)

const archiveTimeout = 30 * time.Second

type Uploader interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID int64) (ledger.OrderDetail, error)
}

// Archiver stores the receipt of every paid order. It subscribes to
// order.paid events; uploads run in the background and failures are only
// logged.
type Archiver struct {
	orders   OrderReader
	uploader Uploader
	cafeName string
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewArchiver(orders OrderReader, uploader Uploader, cafeName string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{orders: orders, uploader: uploader, cafeName: cafeName, logger: logger}
}

func Key(orderID int64) string {
	return fmt.Sprintf("receipts/%d.pdf", orderID)
}

func (a *Archiver) Publish(ctx context.Context, ev queue.Event) {
	if a == nil || ev.Type != queue.OrderPaid || ev.OrderID == nil {
		return
	}
	orderID := *ev.OrderID
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if _, err := a.Archive(ctx, orderID); err != nil {
			a.logger.Warn("receipt archive failed", zap.Int64("orderId", orderID), zap.Error(err))
		}
	}()
}

// Archive renders and uploads the receipt for orderID and returns its URL.
func (a *Archiver) Archive(ctx context.Context, orderID int64) (string, error) {
	order, err := a.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load order: %w", err)
	}
	body, err := Render(order, a.cafeName)
	if err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	url, err := a.uploader.PutObject(ctx, Key(orderID), body, "application/pdf", "")
	if err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	a.logger.Info("receipt archived", zap.Int64("orderId", orderID), zap.String("url", url))
	return url, nil
}

// Wait blocks until background uploads finish.
func (a *Archiver) Wait() {
	a.wg.Wait()
}
