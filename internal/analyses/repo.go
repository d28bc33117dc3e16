package analyses

import "context"

// Repo is the persistence surface the orchestrator mutates. All mutation
// methods are narrow and incremental so a poller reading the record mid-run
// always sees a coherent snapshot.
type Repo interface {
	Create(ctx context.Context, record AnalysisRecord) error
	GetByID(ctx context.Context, id string) (AnalysisRecord, error)

	// SetStatus transitions the lifecycle status. errorMessage is only
	// meaningful for the failed status and may be nil otherwise.
	SetStatus(ctx context.Context, id, status string, errorMessage *string) error

	// ReplaceConsultantOutput overwrites the whole consultant output,
	// both for debounced partial saves and for the final write.
	ReplaceConsultantOutput(ctx context.Context, id string, out ConsultantOutput) error

	SetDebatePlan(ctx context.Context, id string, plan []string) error

	// AppendTurn adds a turn to the end of the transcript and returns its
	// zero-based index, which addresses later content updates.
	AppendTurn(ctx context.Context, id string, turn Turn) (int, error)

	// UpdateTurnContent replaces the content of the turn at index without
	// touching the rest of the transcript.
	UpdateTurnContent(ctx context.Context, id string, index int, content string) error

	SetFinalResult(ctx context.Context, id string, result FinalResult) error
}
