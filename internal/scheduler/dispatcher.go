package scheduler

import (
	"context"
	"fmt"
	"time"

	"clinic_notify_backend/internal/messaging/service"
	"clinic_notify_backend/platform/config"
	"clinic_notify_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const defaultDispatchInterval = 30 * time.Second

// EmailDispatcher polls for due scheduled emails, claims them and enqueues
// a delivery task per claimed message. The claim marks rows as processing,
// so an overlapping poller or a concurrent HTTP process call never picks
// up the same message.
type EmailDispatcher struct {
	client    *asynq.Client
	queue     string
	svc       *service.Service
	log       *logger.Logger
	interval  time.Duration
	batchSize int
}

func NewEmailDispatcher(cfg config.SchedulerConfig, dispatchCfg config.DispatchConfig, svc *service.Service, log *logger.Logger) (*EmailDispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	interval := dispatchCfg.GetDispatchInterval()
	if interval <= 0 {
		interval = defaultDispatchInterval
	}

	return &EmailDispatcher{
		client:    asynq.NewClient(opt),
		queue:     queue,
		svc:       svc,
		log:       log,
		interval:  interval,
		batchSize: dispatchCfg.GetDispatchBatchSize(),
	}, nil
}

func (d *EmailDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *EmailDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.svc == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		claimed, err := d.svc.ClaimDue(ctx, time.Now(), d.batchSize)
		if err != nil {
			d.log.Warn("email claim failed", "error", err)
			continue
		}
		if len(claimed) == 0 {
			continue
		}

		for _, msg := range claimed {
			task, err := NewEmailDeliveryTask(EmailDeliveryPayload{MessageID: msg.ID.String()})
			if err != nil {
				d.log.Error("failed to build delivery task", "message_id", msg.ID.String(), "error", err)
				_ = d.svc.Release(ctx, msg.ID, err)
				continue
			}

			if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue)); err != nil {
				d.log.Error("failed to enqueue delivery task", "message_id", msg.ID.String(), "error", err)
				_ = d.svc.Release(ctx, msg.ID, err)
			}
		}
	}
}
