package scheduler

import (
	"context"
	"fmt"

	"clinic_notify_backend/internal/messaging/service"
	"clinic_notify_backend/platform/config"
	"clinic_notify_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes delivery tasks and sends the claimed messages through
// the messaging service.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	svc    *service.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, svc *service.Service, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		svc:    svc,
		log:    log,
	}

	mux.HandleFunc(TaskEmailDelivery, w.handleEmailDelivery)

	return w, nil
}

func (w *Worker) handleEmailDelivery(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEmailDeliveryPayload(task)
	if err != nil {
		return err
	}

	messageID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		return err
	}

	// Delivery failures settle the message as error; retrying the task
	// would violate the at-most-once guarantee, so the error is not
	// propagated back to asynq.
	if err := w.svc.DeliverByID(ctx, messageID); err != nil {
		w.log.Error("email delivery failed", "message_id", payload.MessageID, "error", err)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
