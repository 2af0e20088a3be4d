package outbox

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/transit"
)

// Processor runs the periodic sweeps: draining the outbox and collecting
// stale inbound transfers. Stoke triggers an immediate drain through the
// same code path the schedule uses.
type Processor struct {
	service   *Service
	receiver  *transit.Receiver
	scheduler *gocron.Scheduler
	interval  time.Duration
	logger    logging.Logger
}

func NewProcessor(service *Service, receiver *transit.Receiver, interval time.Duration, logger logging.Logger) *Processor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Processor{
		service:   service,
		receiver:  receiver,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		logger:    logger.With("module", "outbox.processor"),
	}
}

func (p *Processor) Start(ctx context.Context) error {
	if _, err := p.scheduler.Every(p.interval).Do(func() { p.sweep(ctx) }); err != nil {
		return err
	}
	if _, err := p.scheduler.Every(p.interval).Do(func() {
		if n := p.receiver.CollectGarbage(ctx); n > 0 {
			p.logger.Info(ctx, "stale transfers collected", "count", n)
		}
	}); err != nil {
		return err
	}

	p.scheduler.StartAsync()
	p.logger.Info(ctx, "processor started", "interval", p.interval.String())
	return nil
}

func (p *Processor) Stop() {
	p.scheduler.Stop()
}

// Stoke runs one drain pass immediately and reports the attempt results.
func (p *Processor) Stoke(ctx context.Context) ([]transit.SendResult, error) {
	return p.service.Drain(ctx)
}

func (p *Processor) sweep(ctx context.Context) {
	results, err := p.service.Drain(ctx)
	if err != nil {
		p.logger.Error(ctx, "drain failed", "error", err)
		return
	}
	if len(results) > 0 {
		delivered := 0
		for _, r := range results {
			if r.Success {
				delivered++
			}
		}
		p.logger.Info(ctx, "outbox swept", "attempted", len(results), "delivered", delivered)
	}
}
