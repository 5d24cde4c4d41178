package service

import (
	"context"
	"errors"
	"time"

	"meditation/internal/model"
	"meditation/internal/pubsub"
	"meditation/internal/repository"
	"meditation/internal/storage"
	"meditation/internal/worker/cleanup"

	"github.com/rs/zerolog"
)

var ErrMissingID = errors.New("program id is required")

// ProgramService defines the interface for program operations
type ProgramService interface {
	// ListPrograms returns every program, newest first
	ListPrograms(ctx context.Context) ([]model.Program, error)
	// GetProgram returns nil when the program does not exist
	GetProgram(ctx context.Context, id string) (*model.Program, error)
	CreateProgram(ctx context.Context, p *model.Program) (*model.Program, error)
	UpdateProgram(ctx context.Context, id string, patch repository.ProgramPatch) (*model.Program, error)
	// DeleteProgram removes the program and schedules cleanup of its blobs
	DeleteProgram(ctx context.Context, id string) error
}

// ChangeNotifier is told about local writes so subscribers refresh without
// waiting for the database notification.
type ChangeNotifier interface {
	Notify()
}

type ProgramServiceOption func(*programService)

func WithNotifier(n ChangeNotifier) ProgramServiceOption {
	return func(s *programService) { s.notifier = n }
}

func WithEvents(p pubsub.EventPublisher) ProgramServiceOption {
	return func(s *programService) { s.events = p }
}

// WithCleanupQueue enqueues blob cleanup jobs on delete.
func WithCleanupQueue(q cleanup.Queue, queue string) ProgramServiceOption {
	return func(s *programService) {
		s.cleanupQueue = q
		s.cleanupQueueName = queue
	}
}

// programService is the implementation of ProgramService
type programService struct {
	repo             repository.ProgramRepository
	notifier         ChangeNotifier
	events           pubsub.EventPublisher
	cleanupQueue     cleanup.Queue
	cleanupQueueName string
	logger           zerolog.Logger
	now              func() time.Time
}

// NewProgramService creates a new ProgramService
func NewProgramService(repo repository.ProgramRepository, logger zerolog.Logger, opts ...ProgramServiceOption) ProgramService {
	s := &programService{
		repo:   repo,
		events: pubsub.NopEventPublisher{},
		logger: logger.With().Str("service", "programs").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *programService) ListPrograms(ctx context.Context) ([]model.Program, error) {
	programs, err := s.repo.ListPrograms(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list programs")
		return nil, err
	}
	return programs, nil
}

func (s *programService) GetProgram(ctx context.Context, id string) (*model.Program, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	p, err := s.repo.GetProgram(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("program_id", id).Msg("Failed to get program")
		return nil, err
	}
	return p, nil
}

func (s *programService) CreateProgram(ctx context.Context, p *model.Program) (*model.Program, error) {
	created, err := s.repo.CreateProgram(ctx, p)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create program")
		return nil, err
	}
	s.changed(ctx, created.ID, pubsub.ProgramCreated)
	return created, nil
}

func (s *programService) UpdateProgram(ctx context.Context, id string, patch repository.ProgramPatch) (*model.Program, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	updated, err := s.repo.UpdateProgram(ctx, id, patch)
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error().Err(err).Str("program_id", id).Msg("Failed to update program")
		}
		return nil, err
	}
	s.changed(ctx, id, pubsub.ProgramUpdated)
	return updated, nil
}

func (s *programService) DeleteProgram(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	existing, err := s.repo.GetProgram(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("program_id", id).Msg("Failed to load program for delete")
		return err
	}
	if existing == nil {
		return nil
	}
	if err := s.repo.DeleteProgram(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("program_id", id).Msg("Failed to delete program")
		return err
	}
	s.changed(ctx, id, pubsub.ProgramDeleted)
	s.scheduleCleanup(ctx, existing)
	return nil
}

// scheduleCleanup queues removal of the program's folder and of the blobs it
// references that were uploaded into its draft folder before the first save.
func (s *programService) scheduleCleanup(ctx context.Context, p *model.Program) {
	if s.cleanupQueue == nil {
		return
	}
	if p.ID == storage.NewProgramFolder {
		s.logger.Warn().Str("program_id", p.ID).Msg("Refusing to clean up the shared draft folder")
		return
	}
	job := cleanup.Job{
		ProgramID:   p.ID,
		Prefix:      storage.ProgramPrefix(p.ID),
		Keys:        draftKeys(p),
		RequestedAt: s.now(),
	}
	if err := cleanup.Enqueue(ctx, s.cleanupQueue, s.cleanupQueueName, job); err != nil {
		// The program is gone; orphaned blobs are logged, not fatal.
		s.logger.Error().Err(err).Str("program_id", p.ID).Msg("Failed to schedule blob cleanup")
	}
}

// draftKeys lists the draft-folder objects p points to.
func draftKeys(p *model.Program) []string {
	var keys []string
	seen := map[string]bool{}
	add := func(rawURL string) {
		key, ok := storage.KeyFromURL(rawURL)
		if !ok || !storage.IsDraftKey(key) || seen[key] {
			return
		}
		seen[key] = true
		keys = append(keys, key)
	}
	for _, r := range p.Resources {
		add(r.URL)
	}
	for _, pg := range p.Pages {
		for _, v := range pg.Videos {
			add(v.URL)
			add(v.DownloadURL)
		}
		for _, r := range pg.Resources {
			add(r.URL)
		}
	}
	return keys
}

func (s *programService) changed(ctx context.Context, id string, action pubsub.ProgramAction) {
	if s.notifier != nil {
		s.notifier.Notify()
	}
	ev := pubsub.ProgramEvent{ProgramID: id, Action: action, OccurredAt: s.now()}
	if err := s.events.PublishProgramEvent(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("program_id", id).Str("action", string(action)).Msg("Failed to publish program event")
	}
}
