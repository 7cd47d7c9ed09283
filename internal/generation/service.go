// Package generation runs the create and read workflows for generated
// datasets.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apigen/apigen/internal/dataset"
	"github.com/apigen/apigen/internal/llm"
	"github.com/apigen/apigen/internal/naming"
	"github.com/apigen/apigen/internal/observability"
	"github.com/apigen/apigen/internal/prompt"
	"github.com/apigen/apigen/internal/sanitize"
	"github.com/apigen/apigen/internal/storage"
)

// Archiver stores a copy of a freshly persisted dataset.
type Archiver interface {
	Archive(ctx context.Context, record dataset.Record) ([]storage.ObjectInfo, error)
}

type Dependencies struct {
	Repository dataset.Repository
	// Model answers the generation prompt.
	Model llm.Generator
	// Translator answers translation prompts. Defaults to Model.
	Translator       llm.Generator
	Archiver         Archiver
	Logger           *slog.Logger
	MaxRows          int
	MaxNameAttempts  int
	TranslateColumns bool
}

type Service struct {
	repo             dataset.Repository
	model            llm.Generator
	translator       llm.Generator
	archiver         Archiver
	names            *naming.Allocator
	logger           *slog.Logger
	maxRows          int
	translateColumns bool
}

type CreateInput struct {
	BaseName string
	Request  dataset.GenerationRequest
}

type CreateResult struct {
	Record        dataset.Record
	TruncatedRows int
}

func NewService(deps Dependencies) (*Service, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	translator := deps.Translator
	if translator == nil {
		translator = deps.Model
	}
	return &Service{
		repo:             deps.Repository,
		model:            deps.Model,
		translator:       translator,
		archiver:         deps.Archiver,
		names:            naming.NewAllocator(deps.Repository, deps.MaxNameAttempts),
		logger:           observability.LoggerOrDiscard(deps.Logger),
		maxRows:          deps.MaxRows,
		translateColumns: deps.TranslateColumns,
	}, nil
}

func (s *Service) MaxRows() int {
	return s.maxRows
}

// Create validates the request, asks the model for the dataset and stores it
// under a free name derived from in.BaseName. No step is retried and nothing
// is rolled back when a later step fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (result CreateResult, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if code := CodeOf(err); code != "" {
			outcome = strings.ToLower(string(code))
		} else if err != nil {
			outcome = "error"
		}
		observability.ObserveGeneration(outcome, time.Since(start))
	}()

	baseName, err := ValidateAPIName(in.BaseName)
	if err != nil {
		return CreateResult{}, err
	}
	if err := ValidateRequest(in.Request, s.maxRows); err != nil {
		return CreateResult{}, err
	}
	numRows := in.Request.RowCount()
	titles := dataset.ColumnTitles(in.Request.Columns)
	logger := s.logger.With(slog.String("api_name", baseName), slog.String("trace_id", observability.TraceIDFromContext(ctx)))

	description, err := s.translate(ctx, *in.Request.Description)
	if err != nil {
		return CreateResult{}, stageError(StageTranslating, CodeGenerationFailed, err)
	}

	// Fails fast with ErrNameExhausted before the model calls; Reserve picks the final name.
	candidate, err := s.names.Allocate(ctx, baseName)
	if err != nil {
		return CreateResult{}, allocationError(StageAllocating, err)
	}

	if s.translateColumns {
		titles = s.translateTitles(ctx, logger, titles)
	}

	raw, err := s.model.Generate(ctx, prompt.Generation(*in.Request.Description, numRows, titles))
	if err != nil {
		return CreateResult{}, stageError(StageGenerating, CodeGenerationFailed, err)
	}

	data, err := sanitize.Sanitize(raw)
	if err != nil {
		return CreateResult{}, stageError(StageSanitizing, CodeParseFailed, err)
	}

	data, truncated, err := capRows(data, numRows)
	if err != nil {
		return CreateResult{}, stageError(StageSanitizing, CodeParseFailed, err)
	}
	if truncated > 0 {
		observability.AddTruncatedRows(truncated)
		logger.WarnContext(ctx, "model returned more rows than requested", slog.Int("requested", numRows), slog.Int("dropped", truncated))
	}

	var record dataset.Record
	apiName, err := s.names.Reserve(ctx, baseName, func(ctx context.Context, name string) (bool, error) {
		inserted, ok, err := s.repo.InsertIfAbsent(ctx, dataset.InsertRecordInput{
			APIName:     name,
			Description: description,
			Data:        data,
		})
		if ok {
			record = inserted
		}
		return ok, err
	})
	if err != nil {
		return CreateResult{}, allocationError(StagePersisting, err)
	}
	if apiName != candidate {
		logger.InfoContext(ctx, "api name taken concurrently", slog.String("probed", candidate), slog.String("reserved", apiName))
	}
	record.APIName = apiName
	record.Description = description
	record.Data = data

	s.archive(ctx, logger, record)

	logger.InfoContext(ctx, "dataset generated", slog.String("reserved_name", apiName), slog.Int("requested_rows", numRows))
	return CreateResult{Record: record, TruncatedRows: truncated}, nil
}

// Get returns the stored record for apiName.
func (s *Service) Get(ctx context.Context, apiName string) (dataset.Record, error) {
	apiName, err := ValidateAPIName(apiName)
	if err != nil {
		return dataset.Record{}, err
	}
	record, err := s.repo.GetByName(ctx, apiName)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			return dataset.Record{}, stageError(StageLookingUp, CodeNotFound, err)
		}
		return dataset.Record{}, stageError(StageLookingUp, CodeLookupFailed, err)
	}
	return record, nil
}

func (s *Service) translate(ctx context.Context, text string) (string, error) {
	reply, err := s.translator.Generate(ctx, prompt.Translation(text))
	if err != nil {
		return "", err
	}
	translated := strings.TrimSpace(reply)
	if translated == "" {
		return strings.TrimSpace(text), nil
	}
	return translated, nil
}

// translateTitles keeps the original titles when the reply cannot be matched
// one to one.
func (s *Service) translateTitles(ctx context.Context, logger *slog.Logger, titles []string) []string {
	reply, err := s.translator.Generate(ctx, prompt.ColumnTranslation(titles))
	if err != nil {
		logger.WarnContext(ctx, "column translation failed", slog.Any("error", err))
		return titles
	}
	translated := prompt.ParseColumnList(reply)
	if len(translated) != len(titles) {
		logger.WarnContext(ctx, "column translation returned a different column count", slog.Int("want", len(titles)), slog.Int("got", len(translated)))
		return titles
	}
	return translated
}

func (s *Service) archive(ctx context.Context, logger *slog.Logger, record dataset.Record) {
	if s.archiver == nil {
		return
	}
	if _, err := s.archiver.Archive(ctx, record); err != nil {
		observability.IncrementArchiveFailure()
		logger.WarnContext(ctx, "dataset archive failed", slog.String("reserved_name", record.APIName), slog.Any("error", err))
	}
}

func allocationError(stage Stage, err error) error {
	if errors.Is(err, naming.ErrNameExhausted) {
		return stageError(stage, CodeNameUnavailable, err)
	}
	return stageError(stage, CodePersistenceFailed, err)
}

// capRows truncates a JSON array to limit elements and reports how many were
// dropped. Other JSON values pass unchanged.
func capRows(data json.RawMessage, limit int) (json.RawMessage, int, error) {
	if len(data) == 0 || data[0] != '[' || limit <= 0 {
		return data, 0, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("decode generated rows: %w", err)
	}
	if len(rows) <= limit {
		return data, 0, nil
	}
	capped, err := json.Marshal(rows[:limit])
	if err != nil {
		return nil, 0, fmt.Errorf("encode capped rows: %w", err)
	}
	return capped, len(rows) - limit, nil
}
