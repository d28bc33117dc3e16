package search

import (
	"context"
	"fmt"
	"strings"
)

// Page is one ranked web result.
type Page struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
}

// QuoteExtract is a best-effort structured price pulled out of result text.
// Absence of an extract is not an error; callers fall back to prose context.
type QuoteExtract struct {
	Price         string `json:"price"`
	SnippetSource string `json:"snippetSource"`
}

// Result is the outcome of one search call. Providers degrade to a placeholder
// Result on transport failure instead of failing the caller.
type Result struct {
	Summary string        `json:"summary"`
	Quote   *QuoteExtract `json:"quote,omitempty"`
	Pages   []Page        `json:"pages"`
}

// Searcher performs a single web search per call.
type Searcher interface {
	Search(ctx context.Context, query string) (Result, error)
}

// DegradedSummary is the placeholder summary used when the provider is unreachable.
const DegradedSummary = "无法获取实时数据，请稍后再试。"

// Degraded returns the placeholder result used when a search cannot be served.
func Degraded() Result {
	return Result{Summary: DegradedSummary, Pages: []Page{}}
}

const formattedPageCap = 8

// FormatForLLM renders a result into the labeled text block fed to the model.
func FormatForLLM(res Result) string {
	var b strings.Builder

	if res.Quote != nil {
		b.WriteString("【参考行情】(来自搜索结果摘要)\n")
		fmt.Fprintf(&b, "参考价格: %s\n", res.Quote.Price)
		fmt.Fprintf(&b, "来源信息: %s\n\n", res.Quote.SnippetSource)
	} else {
		b.WriteString("【提示】未在搜索摘要中直接提取到结构化股价，请参考下方新闻内容。\n\n")
	}

	if len(res.Pages) > 0 {
		b.WriteString("【相关新闻与网页】\n")
		pages := res.Pages
		if len(pages) > formattedPageCap {
			pages = pages[:formattedPageCap]
		}
		for i, p := range pages {
			date := p.Date
			if date == "" {
				date = "未知日期"
			}
			fmt.Fprintf(&b, "%d. %s (%s)\n   摘要: %s\n   URL: %s\n\n", i+1, p.Title, date, p.Snippet, p.URL)
		}
	}

	return b.String()
}
