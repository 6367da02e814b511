package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	ProposalTTL time.Duration
}

// ScheduleGeneratorService runs the assignment engine for a group and stores
// the outcome either as a new schedule version or as a short lived proposal.
type ScheduleGeneratorService struct {
	snapshots *SnapshotLoader
	writer    *ScheduleWriter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	store     *proposalStore
	now       func() time.Time
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(
	snapshots *SnapshotLoader,
	writer *ScheduleWriter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	return &ScheduleGeneratorService{
		snapshots: snapshots,
		writer:    writer,
		metrics:   metrics,
		validator: newValidator(validate),
		logger:    logger,
		store:     newProposalStore(cfg.ProposalTTL),
		now:       time.Now,
	}
}

type scheduleProposal struct {
	ProposalID string
	GroupID    string
	Strategy   string
	Seed       *int64
	Sessions   []scheduler.Session
	Unmet      map[string]int
	CreatedAt  time.Time
}

type generationMeta struct {
	Strategy    string         `json:"strategy"`
	Seed        *int64         `json:"seed,omitempty"`
	ProposalID  string         `json:"proposalId,omitempty"`
	UnmetHours  map[string]int `json:"unmetHours"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Generate builds the group's timetable with the deterministic strategy and
// stores it as the next schedule version.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid schedule generation payload")
	}

	snapshot, result, err := s.run(ctx, req.GroupID, scheduler.Greedy())
	if err != nil {
		return nil, err
	}

	var schedule *models.Schedule
	err = s.writer.InTx(ctx, req.GroupID, func(tx *sqlx.Tx) error {
		// Another group may have taken a shared teacher's slot since the
		// first run; running again under the lock sees it.
		if err := s.writer.CheckTeachers(ctx, snapshot, result.Sessions); err != nil {
			if !errors.Is(err, appErrors.ErrConflict) {
				return err
			}
			s.logger.Info("teacher slots changed during generation, running again", zap.String("group_id", req.GroupID))
			if snapshot, result, err = s.run(ctx, req.GroupID, scheduler.Greedy()); err != nil {
				return err
			}
		}

		meta, err := json.Marshal(generationMeta{Strategy: result.Strategy, UnmetHours: result.UnmetHours, GeneratedAt: s.now().UTC()})
		if err != nil {
			return internalError(err, "failed to encode schedule meta")
		}
		schedule, err = s.writer.CreateVersion(ctx, tx, req.GroupID, models.ScheduleSourceGenerated, types.JSONText(meta), sessionsToItems(result.Sessions))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule generated",
		zap.String("group_id", req.GroupID),
		zap.Int("version", schedule.Version),
		zap.Int("sessions", len(result.Sessions)),
	)

	resp := s.response(snapshot, result)
	resp.ScheduleID = schedule.ID
	resp.Version = schedule.Version
	return resp, nil
}

// Preview runs the engine without persisting anything. The proposal can be
// saved later with SaveProposal until it expires.
func (s *ScheduleGeneratorService) Preview(ctx context.Context, req dto.PreviewScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid schedule preview payload")
	}

	strategy := scheduler.Greedy()
	var seed *int64
	if req.Mode == dto.ModeRandom {
		value := s.now().UnixNano()
		if req.Seed != nil {
			value = *req.Seed
		}
		seed = &value
		strategy = scheduler.Random(value)
	}

	snapshot, result, err := s.run(ctx, req.GroupID, strategy)
	if err != nil {
		return nil, err
	}

	proposal := scheduleProposal{
		ProposalID: uuid.NewString(),
		GroupID:    req.GroupID,
		Strategy:   result.Strategy,
		Seed:       seed,
		Sessions:   result.Sessions,
		Unmet:      result.UnmetHours,
		CreatedAt:  s.now(),
	}
	s.store.Save(proposal)

	resp := s.response(snapshot, result)
	resp.ProposalID = proposal.ProposalID
	resp.Seed = seed
	return resp, nil
}

// SaveProposal persists a previewed proposal as the next schedule version.
// The proposal is checked again because the catalog may have changed since.
func (s *ScheduleGeneratorService) SaveProposal(ctx context.Context, proposalID string) (*dto.GenerateScheduleResponse, error) {
	proposal, ok := s.store.Get(proposalID, s.now())
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}

	snapshot, err := s.snapshots.Load(ctx, proposal.GroupID)
	if err != nil {
		return nil, err
	}
	if _, err := snapshot.Replay(proposal.Sessions); err != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal no longer fits the current data: "+appErrors.FromError(err).Message)
	}

	meta, err := json.Marshal(generationMeta{
		Strategy:    proposal.Strategy,
		Seed:        proposal.Seed,
		ProposalID:  proposal.ProposalID,
		UnmetHours:  proposal.Unmet,
		GeneratedAt: proposal.CreatedAt.UTC(),
	})
	if err != nil {
		return nil, internalError(err, "failed to encode schedule meta")
	}

	var schedule *models.Schedule
	err = s.writer.InTx(ctx, proposal.GroupID, func(tx *sqlx.Tx) error {
		if err := s.writer.CheckTeachers(ctx, snapshot, proposal.Sessions); err != nil {
			return appErrors.Clone(appErrors.ErrConflict, "proposal no longer fits the current data: "+appErrors.FromError(err).Message)
		}
		var werr error
		schedule, werr = s.writer.CreateVersion(ctx, tx, proposal.GroupID, models.ScheduleSourcePreview, types.JSONText(meta), sessionsToItems(proposal.Sessions))
		return werr
	})
	if err != nil {
		return nil, err
	}
	s.store.Delete(proposalID)

	resp := s.response(snapshot, &scheduler.Result{Strategy: proposal.Strategy, Sessions: proposal.Sessions, UnmetHours: proposal.Unmet})
	resp.ScheduleID = schedule.ID
	resp.Version = schedule.Version
	resp.ProposalID = proposal.ProposalID
	resp.Seed = proposal.Seed
	return resp, nil
}

func (s *ScheduleGeneratorService) run(ctx context.Context, groupID string, strategy scheduler.Strategy) (*GroupSnapshot, *scheduler.Result, error) {
	snapshot, err := s.snapshots.Load(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if len(snapshot.Subjects) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "group has no subjects to schedule")
	}

	start := time.Now()
	result, err := scheduler.Run(snapshot.Input, strategy)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidInput) {
			s.metrics.ObserveGeneration(strategy.Name(), "invalid", elapsed, 0, 0)
		}
		return nil, nil, engineError(err)
	}

	unmet := 0
	for _, hours := range result.UnmetHours {
		unmet += hours
	}
	outcome := "complete"
	if unmet > 0 {
		outcome = "partial"
		s.logger.Warn("schedule has unmet hours",
			zap.String("group_id", groupID),
			zap.String("strategy", result.Strategy),
			zap.Int("unmet_hours", unmet),
			zap.Any("subjects", result.UnmetHours),
		)
	}
	s.metrics.ObserveGeneration(result.Strategy, outcome, elapsed, len(result.Sessions), unmet)
	return snapshot, result, nil
}

func (s *ScheduleGeneratorService) response(snapshot *GroupSnapshot, result *scheduler.Result) *dto.GenerateScheduleResponse {
	resp := &dto.GenerateScheduleResponse{
		GroupID:  snapshot.Group.ID,
		Strategy: result.Strategy,
		Grid:     snapshot.Input.Grid,
		Sessions: result.Sessions,
		Unmet:    make([]dto.UnmetSubject, 0, len(result.UnmetHours)),
	}
	if resp.Sessions == nil {
		resp.Sessions = []scheduler.Session{}
	}
	for _, subject := range snapshot.Input.Subjects {
		if missing := result.UnmetHours[subject.ID]; missing > 0 {
			resp.Unmet = append(resp.Unmet, dto.UnmetSubject{
				SubjectID: subject.ID,
				Name:      subject.Name,
				Required:  subject.WeeklyHours,
				Missing:   missing,
			})
		}
	}
	return resp
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]scheduleProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{ttl: ttl, items: make(map[string]scheduleProposal)}
}

// Save stores a proposal and evicts expired ones.
func (s *proposalStore) Save(proposal scheduleProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.items {
		if proposal.CreatedAt.Sub(p.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string, now time.Time) (scheduleProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return scheduleProposal{}, false
	}
	if now.Sub(proposal.CreatedAt) > s.ttl {
		s.Delete(id)
		return scheduleProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
