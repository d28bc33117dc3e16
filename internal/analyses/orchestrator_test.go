package analyses

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"debate-backend/internal/llm"
	"debate-backend/internal/search"
)

// scriptedLLM returns canned responses in call order and records what it was
// asked. Streaming calls get the response split into two chunks.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	calls     []scriptedCall
	failAt    int // 1-based call number to fail on; 0 means never
}

type scriptedCall struct {
	messages []llm.Message
	tools    []llm.Tool
	streamed bool
}

func (s *scriptedLLM) Call(ctx context.Context, messages []llm.Message, tools []llm.Tool, onChunk llm.ChunkHandler) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, scriptedCall{messages: messages, tools: tools, streamed: onChunk != nil})
	call := len(s.calls)
	var response string
	if len(s.responses) > 0 {
		response = s.responses[0]
		s.responses = s.responses[1:]
	}
	s.mu.Unlock()

	if s.failAt > 0 && call == s.failAt {
		return "", fmt.Errorf("upstream unavailable")
	}
	if onChunk != nil {
		half := len(response) / 2
		for _, chunk := range []string{response[:half], response[half:]} {
			if chunk != "" {
				time.Sleep(50 * time.Microsecond)
				onChunk(chunk)
			}
		}
	}
	return response, nil
}

type stubSearcher struct {
	mu      sync.Mutex
	queries []string
	result  search.Result
}

func (s *stubSearcher) Search(ctx context.Context, query string) (search.Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return s.result, nil
}

// countingRepo wraps a Repo and counts content updates per turn index.
type countingRepo struct {
	Repo
	mu          sync.Mutex
	turnUpdates map[int]int
}

func newCountingRepo(inner Repo) *countingRepo {
	return &countingRepo{Repo: inner, turnUpdates: make(map[int]int)}
}

func (r *countingRepo) UpdateTurnContent(ctx context.Context, id string, index int, content string) error {
	r.mu.Lock()
	r.turnUpdates[index]++
	r.mu.Unlock()
	return r.Repo.UpdateTurnContent(ctx, id, index, content)
}

func seedPending(t *testing.T, repo Repo, stockCode string) AnalysisRecord {
	t.Helper()
	now := time.Now().UTC()
	record := AnalysisRecord{
		ID:               "analysis-1",
		StockCode:        stockCode,
		RiskProfile:      defaultRiskProfile,
		Status:           StatusPending,
		DebateTranscript: []Turn{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

const consultantResponse = "贵州茅台今日上涨2.3%，成交活跃，机构情绪偏暖。\n```json\n{\"scores\": {\"sentiment\": 72, \"risk\": 38, \"fundamental\": 81}}\n```"

// happyPathResponses scripts all sixteen calls of a three-topic run.
func happyPathResponses(verdict string) []string {
	responses := []string{
		`["600519 股价 今日行情", "600519 最新公告", "600519 机构评级"]`,
		consultantResponse,
		`["估值水平", "业绩增长", "风险因素"]`,
	}
	for round := 1; round <= 3; round++ {
		responses = append(responses,
			fmt.Sprintf("主持人开场%d", round),
			fmt.Sprintf("机会挖掘官观点%d", round),
			fmt.Sprintf("风险预警官观点%d", round),
			fmt.Sprintf("主持人总结%d", round),
		)
	}
	return append(responses, verdict)
}

func TestOrchestratorHappyPath(t *testing.T) {
	repo := newCountingRepo(NewMemoryRepo())
	record := seedPending(t, repo, "600519")

	verdict := "综合双方观点，我倾向于买入，理由如下……"
	client := &scriptedLLM{responses: happyPathResponses(verdict)}
	searcher := &stubSearcher{result: search.Result{Summary: "今日行情摘要"}}
	orch := &Orchestrator{Repo: repo, LLM: client, Search: searcher, SaveInterval: time.Nanosecond}

	orch.Run(context.Background(), record.ID)

	got, err := repo.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected status completed, got %q (error: %v)", got.Status, got.ErrorMessage)
	}
	if got.ConsultantOutput == nil {
		t.Fatalf("expected consultant output")
	}
	if got.ConsultantOutput.MarketInfoSummary != consultantResponse {
		t.Fatalf("consultant summary does not match final stream text")
	}
	if got.ConsultantOutput.Scores != (Scores{Sentiment: 72, Risk: 38, Fundamental: 81}) {
		t.Fatalf("unexpected scores: %+v", got.ConsultantOutput.Scores)
	}
	wantPlan := []string{"估值水平", "业绩增长", "风险因素"}
	if len(got.DebatePlan) != len(wantPlan) {
		t.Fatalf("expected %d topics, got %d", len(wantPlan), len(got.DebatePlan))
	}
	for i, topic := range wantPlan {
		if got.DebatePlan[i] != topic {
			t.Fatalf("topic %d: expected %q, got %q", i, topic, got.DebatePlan[i])
		}
	}

	wantTurns := 4*len(wantPlan) + 1
	if len(got.DebateTranscript) != wantTurns {
		t.Fatalf("expected %d turns, got %d", wantTurns, len(got.DebateTranscript))
	}
	speakerPattern := []string{SpeakerHost, SpeakerBull, SpeakerBear, SpeakerHost}
	for i, turn := range got.DebateTranscript[:wantTurns-1] {
		round := i/4 + 1
		if turn.Round != round {
			t.Fatalf("turn %d: expected round %d, got %d", i, round, turn.Round)
		}
		if turn.Speaker != speakerPattern[i%4] {
			t.Fatalf("turn %d: expected speaker %q, got %q", i, speakerPattern[i%4], turn.Speaker)
		}
		if turn.Topic != wantPlan[round-1] {
			t.Fatalf("turn %d: expected topic %q, got %q", i, wantPlan[round-1], turn.Topic)
		}
		if turn.Content == "" {
			t.Fatalf("turn %d: empty content", i)
		}
	}
	final := got.DebateTranscript[wantTurns-1]
	if final.Round != FinalRound || final.Speaker != SpeakerHost {
		t.Fatalf("unexpected final turn: %+v", final)
	}
	if final.Content != verdict {
		t.Fatalf("final turn content does not match verdict text")
	}

	if got.FinalResult == nil {
		t.Fatalf("expected final result")
	}
	if got.FinalResult.Decision != DecisionBuy {
		t.Fatalf("expected BUY, got %q", got.FinalResult.Decision)
	}
	if got.FinalResult.Reasoning != verdict {
		t.Fatalf("reasoning does not match verdict text")
	}
	if got.FinalResult.Confidence != VerdictConfidence {
		t.Fatalf("expected confidence %d, got %v", VerdictConfidence, got.FinalResult.Confidence)
	}

	if len(client.calls) != 16 {
		t.Fatalf("expected 16 llm calls, got %d", len(client.calls))
	}
	consultantCall := client.calls[1]
	if !consultantCall.streamed {
		t.Fatalf("expected consultant call to stream")
	}
	if len(consultantCall.tools) != 1 || consultantCall.tools[0].Type != "web_search" {
		t.Fatalf("expected web_search tool on consultant call, got %+v", consultantCall.tools)
	}
	if len(searcher.queries) != 3 {
		t.Fatalf("expected 3 searches, got %d", len(searcher.queries))
	}
	date := time.Now().UTC().Format(searchPlanDateFormat)
	for _, query := range searcher.queries {
		if !strings.Contains(query, date) {
			t.Fatalf("expected date-qualified query, got %q", query)
		}
	}

	// Each streamed turn gets at least one debounced partial save plus the
	// exact final write.
	for i := 0; i < wantTurns; i++ {
		if repo.turnUpdates[i] < 2 {
			t.Fatalf("turn %d: expected partial and final content writes, got %d", i, repo.turnUpdates[i])
		}
	}
}

func TestOrchestratorFallsBackToDefaultQueries(t *testing.T) {
	repo := NewMemoryRepo()
	record := seedPending(t, repo, "AAPL")

	responses := happyPathResponses("观望为宜")
	responses[0] = "抱歉，我无法生成查询。"
	client := &scriptedLLM{responses: responses}
	searcher := &stubSearcher{result: search.Result{Summary: "ok"}}
	orch := &Orchestrator{Repo: repo, LLM: client, Search: searcher, SaveInterval: time.Nanosecond}

	orch.Run(context.Background(), record.ID)

	if len(searcher.queries) != 2 {
		t.Fatalf("expected 2 fallback queries, got %d: %v", len(searcher.queries), searcher.queries)
	}
	date := time.Now().UTC().Format(searchPlanDateFormat)
	if searcher.queries[0] != date+" AAPL 股价 今日行情" {
		t.Fatalf("unexpected first fallback query: %q", searcher.queries[0])
	}
	if searcher.queries[1] != date+" AAPL 最新消息 新闻" {
		t.Fatalf("unexpected second fallback query: %q", searcher.queries[1])
	}

	got, _ := repo.GetByID(context.Background(), record.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("planning fallback must not fail the run, got %q", got.Status)
	}
	if got.FinalResult.Decision != DecisionHold {
		t.Fatalf("expected HOLD, got %q", got.FinalResult.Decision)
	}
}

func TestOrchestratorFallsBackToDefaultPlan(t *testing.T) {
	repo := NewMemoryRepo()
	record := seedPending(t, repo, "600519")

	responses := happyPathResponses("建议卖出")
	responses[2] = "这不是一个数组"
	client := &scriptedLLM{responses: responses}
	orch := &Orchestrator{
		Repo:         repo,
		LLM:          client,
		Search:       &stubSearcher{result: search.Result{Summary: "ok"}},
		SaveInterval: time.Nanosecond,
	}

	orch.Run(context.Background(), record.ID)

	got, _ := repo.GetByID(context.Background(), record.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", got.Status)
	}
	want := DefaultDebatePlan()
	if len(got.DebatePlan) != len(want) {
		t.Fatalf("expected default plan, got %v", got.DebatePlan)
	}
	for i := range want {
		if got.DebatePlan[i] != want[i] {
			t.Fatalf("topic %d: expected %q, got %q", i, want[i], got.DebatePlan[i])
		}
	}
	if got.FinalResult.Decision != DecisionSell {
		t.Fatalf("expected SELL, got %q", got.FinalResult.Decision)
	}
}

func TestOrchestratorFailsRunOnDebateError(t *testing.T) {
	repo := NewMemoryRepo()
	record := seedPending(t, repo, "600519")

	// Call 5 is the second turn of round one (the bull argument).
	client := &scriptedLLM{responses: happyPathResponses("买入"), failAt: 5}
	orch := &Orchestrator{
		Repo:         repo,
		LLM:          client,
		Search:       &stubSearcher{result: search.Result{Summary: "ok"}},
		SaveInterval: time.Nanosecond,
	}

	orch.Run(context.Background(), record.ID)

	got, _ := repo.GetByID(context.Background(), record.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "debate round 1") {
		t.Fatalf("expected debate round error message, got %v", got.ErrorMessage)
	}
	if got.FinalResult != nil {
		t.Fatalf("failed run must not carry a final result")
	}
	// Turns appended before the failure stay visible.
	if len(got.DebateTranscript) != 2 {
		t.Fatalf("expected 2 turns at failure point, got %d", len(got.DebateTranscript))
	}
}

func TestOrchestratorSkipsNonPendingRecord(t *testing.T) {
	repo := NewMemoryRepo()
	record := seedPending(t, repo, "600519")
	if err := repo.SetStatus(context.Background(), record.ID, StatusCompleted, nil); err != nil {
		t.Fatalf("set status: %v", err)
	}

	client := &scriptedLLM{}
	orch := &Orchestrator{Repo: repo, LLM: client, Search: &stubSearcher{}}
	orch.Run(context.Background(), record.ID)

	if len(client.calls) != 0 {
		t.Fatalf("expected no llm calls for a non-pending record, got %d", len(client.calls))
	}
	got, _ := repo.GetByID(context.Background(), record.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status must stay completed, got %q", got.Status)
	}
}

func TestOrchestratorIgnoresMissingRecord(t *testing.T) {
	client := &scriptedLLM{}
	orch := &Orchestrator{Repo: NewMemoryRepo(), LLM: client, Search: &stubSearcher{}}
	orch.Run(context.Background(), "no-such-id")
	if len(client.calls) != 0 {
		t.Fatalf("expected no llm calls for a missing record, got %d", len(client.calls))
	}
}
