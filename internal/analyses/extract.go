package analyses

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	fencedScoresRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	bareScoresRe   = regexp.MustCompile(`(?s)(\{.*"scores".*\})`)
	arrayRe        = regexp.MustCompile(`(?s)\[.*\]`)
)

// extractScores pulls a {"scores": {...}} block out of free-form model
// output. A fenced json block wins over a bare object so prose braces do not
// shadow the intended payload.
func extractScores(text string) (Scores, bool) {
	match := fencedScoresRe.FindStringSubmatch(text)
	if match == nil {
		match = bareScoresRe.FindStringSubmatch(text)
	}
	if match == nil {
		return Scores{}, false
	}
	var parsed struct {
		Scores *Scores `json:"scores"`
	}
	if err := json.Unmarshal([]byte(match[1]), &parsed); err != nil || parsed.Scores == nil {
		return Scores{}, false
	}
	return *parsed.Scores, true
}

// extractStringList parses the first bracketed array in text as a JSON list
// of strings.
func extractStringList(text string) ([]string, error) {
	match := arrayRe.FindString(text)
	if match == "" {
		return nil, errors.New("no array in output")
	}
	var items []string
	if err := json.Unmarshal([]byte(match), &items); err != nil {
		return nil, err
	}
	cleaned := items[:0]
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("empty array in output")
	}
	return cleaned, nil
}

// dateQualify prefixes the date onto a query that does not already carry it.
func dateQualify(query, date string) string {
	if strings.Contains(query, date) {
		return query
	}
	return date + " " + query
}

// classifyDecision maps free-form verdict text to a trade decision. A buy
// token anywhere in the text wins over a sell token.
func classifyDecision(text string) string {
	if strings.Contains(text, "买入") || strings.Contains(text, "BUY") {
		return DecisionBuy
	}
	if strings.Contains(text, "卖出") || strings.Contains(text, "SELL") {
		return DecisionSell
	}
	return DecisionHold
}
