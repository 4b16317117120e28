package worker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/config"
	"github.com/fairyhunter13/coupon-wallet/internal/queue"
)

// Service runs the task server and the periodic sweep scheduler.
type Service struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	sweepCron string
	sweep     *asynq.Task
	queueName string
	scheduled bool
}

// NewService creates a worker Service. The queue must be enabled.
func NewService(redisCfg config.RedisConfig, queueCfg config.QueueConfig, consumer *Consumer) (*Service, error) {
	if !queueCfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}

	opt, serverCfg := queue.BuildServerConfig(redisCfg, queueCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	sweep, err := queue.NewExpireSweepTask(queue.ExpireSweepPayload{Batch: queueCfg.SweepBatch})
	if err != nil {
		return nil, err
	}

	return &Service{
		server:    asynq.NewServer(opt, serverCfg),
		scheduler: asynq.NewScheduler(opt, nil),
		mux:       mux,
		sweepCron: strings.TrimSpace(queueCfg.SweepCron),
		sweep:     sweep,
		queueName: queue.QueueName(queueCfg),
	}, nil
}

// Start launches the task server and, when a sweep schedule is set, the
// scheduler. It does not block.
func (s *Service) Start() error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}

	if s.sweepCron == "" {
		log.Info().Msg("claim expiry sweep disabled")
		return nil
	}
	entryID, err := s.scheduler.Register(s.sweepCron, s.sweep, asynq.Queue(s.queueName))
	if err != nil {
		s.server.Shutdown()
		return fmt.Errorf("register sweep %q: %w", s.sweepCron, err)
	}
	if err := s.scheduler.Start(); err != nil {
		s.server.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.scheduled = true
	log.Info().Str("cron", s.sweepCron).Str("entry_id", entryID).Msg("claim expiry sweep scheduled")
	return nil
}

// Stop shuts down the scheduler and waits for in-flight tasks.
func (s *Service) Stop() {
	if s.scheduled {
		s.scheduler.Shutdown()
	}
	s.server.Shutdown()
}
