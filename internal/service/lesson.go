package service

import (
	"context"
	"log/slog"

	"github.com/sakif/lesson-runner/internal/apperror"
	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/model"
	"github.com/sakif/lesson-runner/internal/progress"
	"github.com/sakif/lesson-runner/internal/repository"
)

// RunOptions are the caller-chosen knobs for running a lesson by name.
type RunOptions struct {
	Mode           executor.Mode
	Stdin          string
	TimeoutSeconds int
	LanguageID     int
}

// LessonService is what the CLI and HTTP handlers talk to: it resolves lessons
// by name and hands them to the Dispatcher. Reading lessons never touches history.
type LessonService struct {
	lessons    repository.LessonRepository
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewLessonService(lessons repository.LessonRepository, dispatcher *Dispatcher, logger *slog.Logger) *LessonService {
	return &LessonService{
		lessons:    lessons,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run resolves category/identifier and dispatches it.
// An unknown lesson is ErrNotFound and is not recorded in history.
func (s *LessonService) Run(ctx context.Context, category, identifier string, opts RunOptions) (*executor.ExecutionResult, error) {
	lesson, err := s.resolve(ctx, category, identifier)
	if err != nil {
		return nil, err
	}

	return s.dispatcher.Dispatch(ctx, executor.ExecutionRequest{
		Category:       lesson.Category,
		Identifier:     lesson.Identifier,
		Source:         lesson.Source,
		Stdin:          opts.Stdin,
		Mode:           opts.Mode,
		TimeoutSeconds: opts.TimeoutSeconds,
		LanguageID:     opts.LanguageID,
	})
}

// Execute dispatches a request whose source the caller already has.
func (s *LessonService) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	return s.dispatcher.Dispatch(ctx, req)
}

// Render returns a lesson's source without running it.
func (s *LessonService) Render(ctx context.Context, category, identifier string) (*model.Lesson, error) {
	return s.resolve(ctx, category, identifier)
}

// Info returns lesson metadata.
func (s *LessonService) Info(ctx context.Context, category, identifier string) (*model.LessonInfo, error) {
	info, ok, err := s.lessons.Info(ctx, category, identifier)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound("lesson", category+"/"+identifier)
	}
	return info, nil
}

// List returns the lesson identifiers of one category.
func (s *LessonService) List(ctx context.Context, category string) ([]string, error) {
	return s.lessons.Enumerate(ctx, category)
}

// Catalogue returns every category with its lessons.
func (s *LessonService) Catalogue(ctx context.Context) (map[string][]string, error) {
	categories, err := s.lessons.Categories(ctx)
	if err != nil {
		return nil, err
	}

	catalogue := make(map[string][]string, len(categories))
	for _, c := range categories {
		ids, err := s.lessons.Enumerate(ctx, c)
		if err != nil {
			return nil, err
		}
		catalogue[c] = ids
	}
	return catalogue, nil
}

// History returns every recorded attempt in insertion order.
func (s *LessonService) History() []model.HistoryEntry {
	return s.dispatcher.History()
}

// Progress summarizes history against the current catalogue.
func (s *LessonService) Progress(ctx context.Context) (progress.Summary, error) {
	catalogue, err := s.Catalogue(ctx)
	if err != nil {
		return progress.Summary{}, err
	}
	return progress.Compute(s.dispatcher.History(), catalogue), nil
}

func (s *LessonService) resolve(ctx context.Context, category, identifier string) (*model.Lesson, error) {
	lesson, ok, err := s.lessons.Resolve(ctx, category, identifier)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug("lesson not found",
			slog.String("category", category),
			slog.String("identifier", identifier),
		)
		return nil, apperror.NotFound("lesson", category+"/"+identifier)
	}
	return lesson, nil
}
