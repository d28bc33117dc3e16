package analyses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"debate-backend/internal/llm"
	"debate-backend/internal/search"
	"debate-backend/internal/shared/metrics"
	"debate-backend/internal/shared/telemetry"
)

const (
	maxSearchQueries     = 3
	gatherConcurrency    = 3
	maxMarketInfoRunes   = 30000
	defaultSaveInterval  = 500 * time.Millisecond
	searchPlanDateFormat = "2006-01-02"
)

// Orchestrator drives one analysis from pending to completed (or failed):
// search planning, concurrent gathering, consultant synthesis, topic
// planning, the four-speaker debate loop and the final verdict. All writes
// go through the Repo so pollers can watch the record fill in.
type Orchestrator struct {
	Repo   Repo
	LLM    llm.Client
	Search search.Searcher

	// SaveInterval debounces partial persistence during streams.
	// Zero means the 500ms default.
	SaveInterval time.Duration

	// Now is replaceable in tests; nil means time.Now.
	Now func() time.Time
}

// Run executes the full pipeline for the record. Any phase error marks the
// record failed; a missing record aborts silently.
func (o *Orchestrator) Run(ctx context.Context, recordID string) {
	defer func() {
		if r := recover(); r != nil {
			o.fail(ctx, recordID, fmt.Errorf("panic: %v", r))
		}
	}()

	record, err := o.Repo.GetByID(ctx, recordID)
	if err != nil {
		telemetry.Warn("analysis.lookup_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": recordID,
			"error":       err.Error(),
		})
		return
	}
	if record.Status != StatusPending {
		telemetry.Warn("analysis.already_started", map[string]any{
			"analysis_id": recordID,
			"status":      record.Status,
		})
		return
	}
	if o.LLM == nil || o.Search == nil {
		o.fail(ctx, recordID, fmt.Errorf("missing orchestrator dependencies"))
		return
	}

	if err := o.Repo.SetStatus(ctx, recordID, StatusProcessing, nil); err != nil {
		o.fail(ctx, recordID, fmt.Errorf("set processing failed: %w", err))
		return
	}
	metrics.IncAnalysisStarted()
	startedAt := o.now()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       recordID,
		"stock_code":        record.StockCode,
		"status":            StatusProcessing,
		"status_transition": "pending->processing",
	})

	if err := o.runPhases(ctx, record); err != nil {
		o.fail(ctx, recordID, err)
		return
	}

	if err := o.Repo.SetStatus(ctx, recordID, StatusCompleted, nil); err != nil {
		o.fail(ctx, recordID, fmt.Errorf("set completed failed: %w", err))
		return
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(o.now().Sub(startedAt).Milliseconds()))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       recordID,
		"stock_code":        record.StockCode,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       o.now().Sub(startedAt).Milliseconds(),
	})
}

func (o *Orchestrator) runPhases(ctx context.Context, record AnalysisRecord) error {
	queries := o.planQueries(ctx, record.StockCode)
	marketInfo := o.gather(ctx, queries)

	consultant, err := o.synthesizeConsultant(ctx, record, marketInfo)
	if err != nil {
		return fmt.Errorf("consultant synthesis: %w", err)
	}

	plan := o.planTopics(ctx, consultant.MarketInfoSummary)
	if err := o.Repo.SetDebatePlan(ctx, record.ID, plan); err != nil {
		return fmt.Errorf("set debate plan: %w", err)
	}

	var transcript strings.Builder
	for i, topic := range plan {
		if err := o.debateTopic(ctx, record.ID, i+1, topic, consultant.MarketInfoSummary, &transcript); err != nil {
			return fmt.Errorf("debate round %d (%s): %w", i+1, topic, err)
		}
	}

	return o.verdict(ctx, record.ID, transcript.String())
}

// planQueries asks the model for search queries and never fails the run:
// any planning error falls back to two fixed queries.
func (o *Orchestrator) planQueries(ctx context.Context, stockCode string) []string {
	date := o.now().Format(searchPlanDateFormat)
	fallback := []string{
		fmt.Sprintf("%s %s 股价 今日行情", date, stockCode),
		fmt.Sprintf("%s %s 最新消息 新闻", date, stockCode),
	}

	output, err := o.LLM.Call(ctx, []llm.Message{
		llm.System("You are a JSON generator."),
		llm.User(searchPlanPrompt(stockCode, date)),
	}, nil, nil)
	if err != nil {
		telemetry.Warn("analysis.search_plan_failed", map[string]any{
			"stock_code": stockCode,
			"error":      err.Error(),
		})
		return fallback
	}

	queries, err := extractStringList(output)
	if err != nil {
		telemetry.Warn("analysis.search_plan_unparsable", map[string]any{
			"stock_code": stockCode,
			"error":      err.Error(),
		})
		return fallback
	}
	if len(queries) > maxSearchQueries {
		queries = queries[:maxSearchQueries]
	}
	for i, query := range queries {
		queries[i] = dateQualify(query, date)
	}
	return queries
}

// gather fans the queries out with bounded concurrency and reassembles the
// labeled sections in query order. Search never fails the run; a degraded
// result still yields a section.
func (o *Orchestrator) gather(ctx context.Context, queries []string) string {
	sections := make([]string, len(queries))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(gatherConcurrency)
	for i, query := range queries {
		i, query := i, query
		group.Go(func() error {
			result, err := o.Search.Search(groupCtx, query)
			if err != nil {
				result = search.Degraded()
			}
			sections[i] = fmt.Sprintf("### 查询：%s\n%s", query, search.FormatForLLM(result))
			return nil
		})
	}
	_ = group.Wait()
	return truncateRunes(strings.Join(sections, "\n\n"), maxMarketInfoRunes)
}

// synthesizeConsultant streams the market summary into the record with
// debounced partial saves, then overwrites with the exact final text and the
// extracted scores.
func (o *Orchestrator) synthesizeConsultant(ctx context.Context, record AnalysisRecord, marketInfo string) (ConsultantOutput, error) {
	out := ConsultantOutput{Scores: DefaultScores()}
	if err := o.Repo.ReplaceConsultantOutput(ctx, record.ID, out); err != nil {
		return ConsultantOutput{}, err
	}

	saver := o.newSaveGate()
	var buf strings.Builder
	messages := []llm.Message{
		llm.System(consultantSystemPrompt),
		llm.User(consultantUserPrompt(record.StockCode, marketInfo)),
	}
	final, err := o.LLM.Call(ctx, messages, []llm.Tool{{Type: "web_search"}}, func(chunk string) {
		buf.WriteString(chunk)
		if !saver.due() {
			return
		}
		partial := out
		partial.MarketInfoSummary = buf.String()
		if err := o.Repo.ReplaceConsultantOutput(ctx, record.ID, partial); err != nil {
			telemetry.Warn("analysis.stream_save_failed", map[string]any{
				"analysis_id": record.ID,
				"phase":       "consultant",
				"error":       err.Error(),
			})
		}
	})
	if err != nil {
		return ConsultantOutput{}, err
	}

	out.MarketInfoSummary = final
	if scores, ok := extractScores(final); ok {
		out.Scores = scores
	} else {
		telemetry.Warn("analysis.scores_unparsable", map[string]any{
			"analysis_id": record.ID,
		})
	}
	if err := o.Repo.ReplaceConsultantOutput(ctx, record.ID, out); err != nil {
		return ConsultantOutput{}, err
	}
	return out, nil
}

// planTopics derives the debate dimensions; planning errors fall back to the
// default plan and never fail the run.
func (o *Orchestrator) planTopics(ctx context.Context, marketSummary string) []string {
	output, err := o.LLM.Call(ctx, []llm.Message{
		llm.System("You are a JSON generator."),
		llm.User(topicPlanPrompt(marketSummary)),
	}, nil, nil)
	if err != nil {
		telemetry.Warn("analysis.topic_plan_failed", map[string]any{"error": err.Error()})
		return DefaultDebatePlan()
	}
	topics, err := extractStringList(output)
	if err != nil {
		telemetry.Warn("analysis.topic_plan_unparsable", map[string]any{"error": err.Error()})
		return DefaultDebatePlan()
	}
	return topics
}

// debateTopic runs the four turns of one round: host intro, bull, bear, host
// summary. Each turn is appended with empty content before its stream starts
// so the index it is patched at stays stable.
func (o *Orchestrator) debateTopic(ctx context.Context, id string, round int, topic, marketInfo string, transcript *strings.Builder) error {
	hostIntro, err := o.speakTurn(ctx, id, Turn{Round: round, Topic: topic, Speaker: SpeakerHost}, []llm.Message{
		llm.User(hostIntroPrompt(topic)),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(transcript, "Host (Intro %s): %s\n", topic, hostIntro)

	bull, err := o.speakTurn(ctx, id, Turn{Round: round, Topic: topic, Speaker: SpeakerBull}, []llm.Message{
		llm.User(bullPrompt(topic, marketInfo)),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(transcript, "Opportunity Hunter (%s): %s\n", topic, bull)

	bear, err := o.speakTurn(ctx, id, Turn{Round: round, Topic: topic, Speaker: SpeakerBear}, []llm.Message{
		llm.User(bearPrompt(topic, bull)),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(transcript, "Risk Auditor (%s): %s\n", topic, bear)

	summary, err := o.speakTurn(ctx, id, Turn{Round: round, Topic: topic, Speaker: SpeakerHost}, []llm.Message{
		llm.User(hostSummaryPrompt(topic, bull, bear)),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(transcript, "Host (Summary %s): %s\n", topic, summary)
	return nil
}

// verdict streams the closing statement as round 99, classifies the decision
// and stores the final result.
func (o *Orchestrator) verdict(ctx context.Context, id, transcript string) error {
	content, err := o.speakTurn(ctx, id, Turn{Round: FinalRound, Speaker: SpeakerHost}, []llm.Message{
		llm.User(verdictPrompt(transcript)),
	})
	if err != nil {
		return fmt.Errorf("verdict: %w", err)
	}

	result := FinalResult{
		Decision:   classifyDecision(content),
		Reasoning:  content,
		Confidence: VerdictConfidence,
	}
	if err := o.Repo.SetFinalResult(ctx, id, result); err != nil {
		return fmt.Errorf("set final result: %w", err)
	}
	return nil
}

// speakTurn appends the turn, streams its content with debounced in-place
// patches, then writes the exact final content.
func (o *Orchestrator) speakTurn(ctx context.Context, id string, turn Turn, messages []llm.Message) (string, error) {
	index, err := o.Repo.AppendTurn(ctx, id, turn)
	if err != nil {
		return "", fmt.Errorf("append turn: %w", err)
	}

	saver := o.newSaveGate()
	var buf strings.Builder
	content, err := o.LLM.Call(ctx, messages, nil, func(chunk string) {
		buf.WriteString(chunk)
		if !saver.due() {
			return
		}
		if err := o.Repo.UpdateTurnContent(ctx, id, index, buf.String()); err != nil {
			telemetry.Warn("analysis.stream_save_failed", map[string]any{
				"analysis_id": id,
				"turn_index":  index,
				"error":       err.Error(),
			})
		}
	})
	if err != nil {
		return "", err
	}
	if err := o.Repo.UpdateTurnContent(ctx, id, index, content); err != nil {
		return "", fmt.Errorf("finalize turn %d: %w", index, err)
	}
	metrics.IncDebateTurn()
	return content, nil
}

func (o *Orchestrator) fail(ctx context.Context, id string, cause error) {
	msg := cause.Error()
	telemetry.Error("analysis.failed", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": id,
		"error":       msg,
	})
	metrics.IncAnalysisFailed()
	if err := o.Repo.SetStatus(context.WithoutCancel(ctx), id, StatusFailed, &msg); err != nil {
		telemetry.Error("analysis.fail_write_failed", map[string]any{
			"analysis_id": id,
			"error":       err.Error(),
		})
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) newSaveGate() *saveGate {
	interval := o.SaveInterval
	if interval <= 0 {
		interval = defaultSaveInterval
	}
	return &saveGate{interval: interval, last: o.now(), now: o.now}
}

// saveGate is a time debounce: due reports true at most once per interval.
// Streams call it from a single goroutine, so no locking is needed.
type saveGate struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func (g *saveGate) due() bool {
	now := g.now()
	if now.Sub(g.last) > g.interval {
		g.last = now
		return true
	}
	return false
}
