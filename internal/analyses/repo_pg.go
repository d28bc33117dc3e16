package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres. JSONB columns hold the consultant
// output, the debate plan, the transcript and the final result; turn content
// is patched in place with jsonb_set so a partial save touches only the turn
// being streamed.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, record AnalysisRecord) error {
	const query = `
INSERT INTO analyses (id, stock_code, risk_profile, market_sentiment, status, debate_transcript, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, '[]'::jsonb, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		record.ID,
		record.StockCode,
		record.RiskProfile,
		record.MarketSentiment,
		record.Status,
		record.CreatedAt,
		record.UpdatedAt,
	)
	return err
}

// GetByID returns a record by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (AnalysisRecord, error) {
	const query = `
SELECT id, stock_code, risk_profile, market_sentiment, status,
       consultant_output, debate_plan, debate_transcript, final_result,
       error_message, created_at, updated_at
FROM analyses
WHERE id = $1
LIMIT 1`
	var record AnalysisRecord
	var consultantOutput sql.NullString
	var debatePlan sql.NullString
	var transcript sql.NullString
	var finalResult sql.NullString
	var errorMessage sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.StockCode,
		&record.RiskProfile,
		&record.MarketSentiment,
		&record.Status,
		&consultantOutput,
		&debatePlan,
		&transcript,
		&finalResult,
		&errorMessage,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AnalysisRecord{}, ErrNotFound
		}
		return AnalysisRecord{}, err
	}
	if consultantOutput.Valid {
		var out ConsultantOutput
		if err := json.Unmarshal([]byte(consultantOutput.String), &out); err == nil {
			record.ConsultantOutput = &out
		}
	}
	if debatePlan.Valid {
		if err := json.Unmarshal([]byte(debatePlan.String), &record.DebatePlan); err != nil {
			record.DebatePlan = nil
		}
	}
	record.DebateTranscript = []Turn{}
	if transcript.Valid {
		if err := json.Unmarshal([]byte(transcript.String), &record.DebateTranscript); err != nil {
			record.DebateTranscript = []Turn{}
		}
	}
	if finalResult.Valid {
		var result FinalResult
		if err := json.Unmarshal([]byte(finalResult.String), &result); err == nil {
			record.FinalResult = &result
		}
	}
	if errorMessage.Valid {
		record.ErrorMessage = &errorMessage.String
	}
	return record, nil
}

// SetStatus transitions the lifecycle status.
func (r *PGRepo) SetStatus(ctx context.Context, id, status string, errorMessage *string) error {
	const query = `
UPDATE analyses
SET status = $2, error_message = COALESCE($3, error_message), updated_at = $4
WHERE id = $1`
	return r.exec(ctx, query, id, status, errorMessage, time.Now().UTC())
}

// ReplaceConsultantOutput overwrites the consultant output.
func (r *PGRepo) ReplaceConsultantOutput(ctx context.Context, id string, out ConsultantOutput) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return err
	}
	const query = `
UPDATE analyses
SET consultant_output = $2::jsonb, updated_at = $3
WHERE id = $1`
	return r.exec(ctx, query, id, string(payload), time.Now().UTC())
}

// SetDebatePlan stores the ordered topic list.
func (r *PGRepo) SetDebatePlan(ctx context.Context, id string, plan []string) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	const query = `
UPDATE analyses
SET debate_plan = $2::jsonb, updated_at = $3
WHERE id = $1`
	return r.exec(ctx, query, id, string(payload), time.Now().UTC())
}

// AppendTurn appends a turn to the transcript and returns its zero-based
// index, read back from the updated array length.
func (r *PGRepo) AppendTurn(ctx context.Context, id string, turn Turn) (int, error) {
	payload, err := json.Marshal(turn)
	if err != nil {
		return 0, err
	}
	const query = `
UPDATE analyses
SET debate_transcript = COALESCE(debate_transcript, '[]'::jsonb) || $2::jsonb, updated_at = $3
WHERE id = $1
RETURNING jsonb_array_length(debate_transcript) - 1`
	var index int
	err = r.DB.QueryRowContext(ctx, query, id, string(payload), time.Now().UTC()).Scan(&index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return index, nil
}

// UpdateTurnContent patches the content of the turn at index in place.
func (r *PGRepo) UpdateTurnContent(ctx context.Context, id string, index int, content string) error {
	if index < 0 {
		return fmt.Errorf("invalid turn index %d", index)
	}
	const query = `
UPDATE analyses
SET debate_transcript = jsonb_set(debate_transcript, ARRAY[$2::text, 'content'], to_jsonb($3::text)), updated_at = $4
WHERE id = $1 AND jsonb_array_length(debate_transcript) > $5`
	result, err := r.DB.ExecContext(ctx, query, id, fmt.Sprintf("%d", index), content, time.Now().UTC(), index)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// SetFinalResult stores the verdict.
func (r *PGRepo) SetFinalResult(ctx context.Context, id string, result FinalResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	const query = `
UPDATE analyses
SET final_result = $2::jsonb, updated_at = $3
WHERE id = $1`
	return r.exec(ctx, query, id, string(payload), time.Now().UTC())
}

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
