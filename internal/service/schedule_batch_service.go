package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

const generateJobKind = "schedule.generate"

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
}

// ScheduleBatchConfig sizes the generation worker pool.
type ScheduleBatchConfig struct {
	Workers    int
	MaxRetries int
}

// ScheduleBatchService regenerates many groups in the background. Each group
// is one job; engine runs are independent and persistence is serialized per
// group by the schedule writer.
type ScheduleBatchService struct {
	generator scheduleGenerator
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleBatchService builds the service and its queue. Call Start before use.
func NewScheduleBatchService(generator scheduleGenerator, validate *validator.Validate, logger *zap.Logger, cfg ScheduleBatchConfig) *ScheduleBatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ScheduleBatchService{generator: generator, validator: newValidator(validate), logger: logger}
	s.queue = jobs.NewQueue("schedule-generation", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the workers.
func (s *ScheduleBatchService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for running jobs to return.
func (s *ScheduleBatchService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules one generation job per distinct group.
func (s *ScheduleBatchService) Enqueue(_ context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid batch payload")
	}

	resp := &dto.BatchGenerateResponse{Jobs: make(map[string]string, len(req.GroupIDs))}
	for _, groupID := range req.GroupIDs {
		if _, ok := resp.Jobs[groupID]; ok {
			continue
		}
		id, err := s.queue.Enqueue(jobs.Job{Kind: generateJobKind, Payload: groupID})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue schedule generation")
		}
		resp.Jobs[groupID] = id
	}
	s.logger.Info("schedule generation queued", zap.Int("groups", len(resp.Jobs)))
	return resp, nil
}

// Status reports the state of a queued generation job.
func (s *ScheduleBatchService) Status(jobID string) (*jobs.Record, error) {
	rec, ok := s.queue.Status(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &rec, nil
}

func (s *ScheduleBatchService) handle(ctx context.Context, job jobs.Job) error {
	groupID, ok := job.Payload.(string)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected payload %T", job.Payload))
	}
	_, err := s.generator.Generate(ctx, dto.GenerateScheduleRequest{GroupID: groupID})
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < 500 {
		return jobs.Permanent(err)
	}
	return err
}
