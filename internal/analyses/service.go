package analyses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"debate-backend/internal/shared/telemetry"
)

const defaultRiskProfile = "steady"

// Service contains business logic for analyses.
type Service struct {
	Repo         Repo
	Orchestrator *Orchestrator
}

// Create stores a pending record and kicks off the orchestration run in the
// background. The returned record is immediately pollable by id.
func (s *Service) Create(ctx context.Context, stockCode, riskProfile, marketSentiment string) (AnalysisRecord, error) {
	stockCode = strings.TrimSpace(stockCode)
	if stockCode == "" {
		return AnalysisRecord{}, fmt.Errorf("%w: stockCode is required", ErrValidation)
	}
	if strings.TrimSpace(riskProfile) == "" {
		riskProfile = defaultRiskProfile
	}

	now := time.Now().UTC()
	record := AnalysisRecord{
		ID:               uuid.NewString(),
		StockCode:        stockCode,
		RiskProfile:      riskProfile,
		MarketSentiment:  strings.TrimSpace(marketSentiment),
		Status:           StatusPending,
		DebateTranscript: []Turn{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Create(ctx, record); err != nil {
		return AnalysisRecord{}, err
	}

	telemetry.Info("analysis.created", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": record.ID,
		"stock_code":  record.StockCode,
	})
	go s.Orchestrator.Run(backgroundWithRequestID(ctx), record.ID)

	return record, nil
}

// Get returns the current record snapshot for polling.
func (s *Service) Get(ctx context.Context, id string) (AnalysisRecord, error) {
	return s.Repo.GetByID(ctx, id)
}
