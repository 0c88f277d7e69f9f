package settlement

import (
	"context"
	"sync"

	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/service/fee"
)

type Consumer struct {
	countWorkers int
	fees         feeLedger
	logger       logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.FeeAssessment) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range c.countWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, in)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.FeeAssessment) {
	for {
		select {
		case <-ctx.Done():
			return

		case a, ok := <-in:
			if !ok {
				return
			}

			charged, err := c.fees.Settle(ctx, a, fee.SourceSettlement)
			if err != nil {
				c.logger.Warn("Fee not charged, will retry", "chargeRequestId", a.ChargeRequestID, "account", a.AccountNumber, "attempts", a.Attempts+1, "error", err)
				continue
			}

			c.logger.Info("Fee charged", "feeId", charged.ID, "chargeRequestId", a.ChargeRequestID, "account", a.AccountNumber)
		}
	}
}
