package analyses

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	SpeakerHost = "host"
	SpeakerBull = "bull"
	SpeakerBear = "bear"
)

const (
	DecisionBuy  = "BUY"
	DecisionSell = "SELL"
	DecisionHold = "HOLD"
)

// FinalRound is the sentinel round number of the closing verdict turn.
const FinalRound = 99

// Scores are bounded 0-100 ratings embedded in the consultant's output.
type Scores struct {
	Sentiment   int `json:"sentiment"`
	Risk        int `json:"risk"`
	Fundamental int `json:"fundamental"`
}

// DefaultScores returns the neutral ratings used until (or unless) the model
// emits a parsable scores block.
func DefaultScores() Scores {
	return Scores{Sentiment: 50, Risk: 50, Fundamental: 50}
}

// ConsultantOutput is the market-intelligence phase result. MarketInfoSummary
// accumulates during streaming and is replaced with the exact final text once
// the stream completes.
type ConsultantOutput struct {
	MarketInfoSummary string `json:"marketInfoSummary"`
	Scores            Scores `json:"scores"`
}

// Turn is one attributed utterance in the debate transcript. Content is
// mutated in place by index while its stream runs, then frozen.
type Turn struct {
	Round   int    `json:"round"`
	Topic   string `json:"topic,omitempty"`
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// FinalResult is set exactly once, at the end of the verdict phase.
type FinalResult struct {
	Decision   string  `json:"decision"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// AnalysisRecord is the single mutable aggregate one orchestration run owns.
type AnalysisRecord struct {
	ID               string            `json:"id"`
	StockCode        string            `json:"stockCode"`
	RiskProfile      string            `json:"riskProfile"`
	MarketSentiment  string            `json:"marketSentiment"`
	Status           string            `json:"status"`
	ConsultantOutput *ConsultantOutput `json:"consultantOutput,omitempty"`
	DebatePlan       []string          `json:"debatePlan,omitempty"`
	DebateTranscript []Turn            `json:"debateTranscript"`
	FinalResult      *FinalResult      `json:"finalResult,omitempty"`
	ErrorMessage     *string           `json:"errorMessage,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// DefaultDebatePlan is used when topic planning output cannot be parsed.
func DefaultDebatePlan() []string {
	return []string{"估值分析", "增长潜力", "风险因素"}
}

// VerdictConfidence is the fixed confidence attached to the final result.
const VerdictConfidence = 85
