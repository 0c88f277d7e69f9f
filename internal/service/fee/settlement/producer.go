package settlement

import (
	"context"
	"time"

	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
)

type Producer struct {
	interval  time.Duration
	batchSize int
	fees      feeLedger
	logger    logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.FeeAssessment) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				pending, err := p.fees.ListPending(ctx, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to list pending fees", "error", err)
					continue
				}

				if len(pending) > 0 {
					p.logger.Info("Pending fees found", "count", len(pending))
				}

				for _, a := range pending {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending fees")
						return
					case out <- a:
					}
				}
			}
		}
	}()

	return idleStopped
}
