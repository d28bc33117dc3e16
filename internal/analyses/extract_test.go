package analyses

import "testing"

func TestExtractScoresFencedBlock(t *testing.T) {
	text := "市场情绪偏暖。\n```json\n{\"scores\": {\"sentiment\": 70, \"risk\": 30, \"fundamental\": 85}}\n```\n以上。"
	scores, ok := extractScores(text)
	if !ok {
		t.Fatalf("expected scores to parse")
	}
	if scores != (Scores{Sentiment: 70, Risk: 30, Fundamental: 85}) {
		t.Fatalf("unexpected scores: %+v", scores)
	}
}

func TestExtractScoresBareObject(t *testing.T) {
	text := `综合评估如下 {"scores": {"sentiment": 55, "risk": 60, "fundamental": 45}} 供参考。`
	scores, ok := extractScores(text)
	if !ok {
		t.Fatalf("expected scores to parse")
	}
	if scores.Risk != 60 {
		t.Fatalf("expected risk 60, got %d", scores.Risk)
	}
}

func TestExtractScoresAbsent(t *testing.T) {
	for _, text := range []string{
		"没有任何评分信息。",
		"```json\n{\"foo\": 1}\n```",
		`{"scores": 不是JSON}`,
	} {
		if _, ok := extractScores(text); ok {
			t.Fatalf("expected no scores from %q", text)
		}
	}
}

func TestExtractStringList(t *testing.T) {
	items, err := extractStringList("好的，查询如下：[\"估值水平\", \"业绩增长\", \"风险因素\"] 请使用。")
	if err != nil {
		t.Fatalf("extract list: %v", err)
	}
	if len(items) != 3 || items[0] != "估值水平" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestExtractStringListRejectsGarbage(t *testing.T) {
	for _, text := range []string{
		"没有数组",
		"[1, 2, 3",
		"[]",
		`["", "  "]`,
	} {
		if _, err := extractStringList(text); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}

func TestDateQualify(t *testing.T) {
	if got := dateQualify("600519 股价", "2026-08-31"); got != "2026-08-31 600519 股价" {
		t.Fatalf("expected date prefix, got %q", got)
	}
	if got := dateQualify("2026-08-31 600519 股价", "2026-08-31"); got != "2026-08-31 600519 股价" {
		t.Fatalf("expected query unchanged, got %q", got)
	}
}

func TestClassifyDecision(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"综合来看建议买入", DecisionBuy},
		{"I would BUY this stock", DecisionBuy},
		{"建议卖出规避风险", DecisionSell},
		{"the call is SELL", DecisionSell},
		{"建议观望，等待更多信号", DecisionHold},
		{"没有明确倾向", DecisionHold},
		// A buy token wins even when a sell token also appears.
		{"短线可以买入，若破位则卖出", DecisionBuy},
	}
	for _, tc := range cases {
		if got := classifyDecision(tc.text); got != tc.want {
			t.Fatalf("classifyDecision(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
