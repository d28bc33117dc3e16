package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use. It
// backs local development when DATABASE_URL is unset.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]AnalysisRecord
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]AnalysisRecord)}
}

// Create stores the record.
func (r *MemoryRepo) Create(ctx context.Context, record AnalysisRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[record.ID] = cloneRecord(record)
	return nil
}

// GetByID returns a record by its ID. The returned value is a deep copy, so
// a poller never observes a transcript slice the orchestrator is mutating.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.byID[id]
	if !ok {
		return AnalysisRecord{}, ErrNotFound
	}
	return cloneRecord(record), nil
}

// SetStatus transitions the lifecycle status.
func (r *MemoryRepo) SetStatus(ctx context.Context, id, status string, errorMessage *string) error {
	return r.update(ctx, id, func(record *AnalysisRecord) error {
		record.Status = status
		if errorMessage != nil {
			msg := *errorMessage
			record.ErrorMessage = &msg
		}
		return nil
	})
}

// ReplaceConsultantOutput overwrites the consultant output.
func (r *MemoryRepo) ReplaceConsultantOutput(ctx context.Context, id string, out ConsultantOutput) error {
	return r.update(ctx, id, func(record *AnalysisRecord) error {
		copied := out
		record.ConsultantOutput = &copied
		return nil
	})
}

// SetDebatePlan stores the ordered topic list.
func (r *MemoryRepo) SetDebatePlan(ctx context.Context, id string, plan []string) error {
	return r.update(ctx, id, func(record *AnalysisRecord) error {
		record.DebatePlan = append([]string(nil), plan...)
		return nil
	})
}

// AppendTurn adds a turn and returns its zero-based index.
func (r *MemoryRepo) AppendTurn(ctx context.Context, id string, turn Turn) (int, error) {
	index := -1
	err := r.update(ctx, id, func(record *AnalysisRecord) error {
		record.DebateTranscript = append(record.DebateTranscript, turn)
		index = len(record.DebateTranscript) - 1
		return nil
	})
	return index, err
}

// UpdateTurnContent replaces the content of the turn at index.
func (r *MemoryRepo) UpdateTurnContent(ctx context.Context, id string, index int, content string) error {
	return r.update(ctx, id, func(record *AnalysisRecord) error {
		if index < 0 || index >= len(record.DebateTranscript) {
			return ErrNotFound
		}
		record.DebateTranscript[index].Content = content
		return nil
	})
}

// SetFinalResult stores the verdict.
func (r *MemoryRepo) SetFinalResult(ctx context.Context, id string, result FinalResult) error {
	return r.update(ctx, id, func(record *AnalysisRecord) error {
		copied := result
		record.FinalResult = &copied
		return nil
	})
}

func (r *MemoryRepo) update(ctx context.Context, id string, fn func(*AnalysisRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&record); err != nil {
		return err
	}
	record.UpdatedAt = time.Now().UTC()
	r.byID[id] = record
	return nil
}

func cloneRecord(record AnalysisRecord) AnalysisRecord {
	cloned := record
	if record.ConsultantOutput != nil {
		out := *record.ConsultantOutput
		cloned.ConsultantOutput = &out
	}
	cloned.DebatePlan = append([]string(nil), record.DebatePlan...)
	// Keep the transcript non-nil so it always serializes as an array.
	cloned.DebateTranscript = append([]Turn{}, record.DebateTranscript...)
	if record.FinalResult != nil {
		result := *record.FinalResult
		cloned.FinalResult = &result
	}
	if record.ErrorMessage != nil {
		msg := *record.ErrorMessage
		cloned.ErrorMessage = &msg
	}
	return cloned
}
