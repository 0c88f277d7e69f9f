package settlement

import (
	"context"
	"time"

	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
)

const (
	defaultCountWorkers    = 4                // Number of workers charging fees
	defaultProduceInterval = 10 * time.Second // Interval for fetching pending fees
	defaultBatchSize       = 100
)

type feeLedger interface {
	ListPending(ctx context.Context, limit int) ([]models.FeeAssessment, error)
	Settle(ctx context.Context, a models.FeeAssessment, source string) (models.Fee, error)
}

type Config struct {
	Workers   int
	Interval  time.Duration
	BatchSize int
}

// Processor charges transfer fees that were not charged right after the transfer
type Processor struct {
	consumer *Consumer
	producer *Producer
	logger   logger.Logger
}

func New(cfg Config, fees feeLedger, l logger.Logger) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultCountWorkers
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProduceInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	l = l.With("component", "fee-settlement")

	return &Processor{
		consumer: &Consumer{
			countWorkers: cfg.Workers,
			fees:         fees,
			logger:       l,
		},
		producer: &Producer{
			interval:  cfg.Interval,
			batchSize: cfg.BatchSize,
			fees:      fees,
			logger:    l,
		},
		logger: l,
	}
}

// Start settlement. Returned channel is closed when all workers stopped after ctx is done
func (p *Processor) Process(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	assessments := make(chan models.FeeAssessment)

	producerStopped := p.producer.Produce(ctx, assessments)
	consumerStopped := p.consumer.Consume(ctx, assessments)

	go func() {
		defer close(idleStopped)
		<-producerStopped
		close(assessments)
		<-consumerStopped
		p.logger.Debug("Fee settlement stopped")
	}()

	return idleStopped
}
