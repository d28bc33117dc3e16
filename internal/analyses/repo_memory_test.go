package analyses

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRepoLifecycle(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	record := AnalysisRecord{
		ID:               "analysis-1",
		StockCode:        "600519",
		RiskProfile:      "steady",
		Status:           StatusPending,
		DebateTranscript: []Turn{},
		CreatedAt:        time.Now().UTC(),
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.SetStatus(ctx, record.ID, StatusProcessing, nil); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	out := ConsultantOutput{MarketInfoSummary: "摘要", Scores: DefaultScores()}
	if err := repo.ReplaceConsultantOutput(ctx, record.ID, out); err != nil {
		t.Fatalf("ReplaceConsultantOutput: %v", err)
	}
	if err := repo.SetDebatePlan(ctx, record.ID, []string{"估值水平"}); err != nil {
		t.Fatalf("SetDebatePlan: %v", err)
	}

	first, err := repo.AppendTurn(ctx, record.ID, Turn{Round: 1, Topic: "估值水平", Speaker: SpeakerHost})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if first != 0 {
		t.Fatalf("expected index 0, got %d", first)
	}
	second, err := repo.AppendTurn(ctx, record.ID, Turn{Round: 1, Topic: "估值水平", Speaker: SpeakerBull})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if second != 1 {
		t.Fatalf("expected index 1, got %d", second)
	}
	if err := repo.UpdateTurnContent(ctx, record.ID, 1, "正在生成…"); err != nil {
		t.Fatalf("UpdateTurnContent: %v", err)
	}
	if err := repo.SetFinalResult(ctx, record.ID, FinalResult{Decision: DecisionHold, Reasoning: "观望", Confidence: VerdictConfidence}); err != nil {
		t.Fatalf("SetFinalResult: %v", err)
	}

	got, err := repo.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Fatalf("expected processing, got %q", got.Status)
	}
	if got.ConsultantOutput == nil || got.ConsultantOutput.MarketInfoSummary != "摘要" {
		t.Fatalf("unexpected consultant output: %+v", got.ConsultantOutput)
	}
	if len(got.DebateTranscript) != 2 || got.DebateTranscript[1].Content != "正在生成…" {
		t.Fatalf("unexpected transcript: %+v", got.DebateTranscript)
	}
	if got.DebateTranscript[0].Content != "" {
		t.Fatalf("update at index 1 must not touch index 0")
	}
	if got.FinalResult == nil || got.FinalResult.Decision != DecisionHold {
		t.Fatalf("unexpected final result: %+v", got.FinalResult)
	}

	// The snapshot is a copy: mutating it must not leak into the store.
	got.DebateTranscript[0].Content = "mutated"
	again, _ := repo.GetByID(ctx, record.ID)
	if again.DebateTranscript[0].Content != "" {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}

func TestMemoryRepoNotFound(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetStatus(ctx, "missing", StatusFailed, nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.AppendTurn(ctx, "missing", Turn{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoUpdateTurnContentBounds(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	record := AnalysisRecord{ID: "analysis-1", StockCode: "x", Status: StatusPending}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateTurnContent(ctx, record.ID, 0, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for out-of-range index, got %v", err)
	}
}
