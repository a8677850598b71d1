package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query   string // Free text matched against video and chapter titles
	ModelID string // Exact model filter
	Source  string // "model" or "fallback"

	Limit  int
	Offset int

	SortBy    string // "relevance" (default) or "recent"
	Highlight bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:     20,
		SortBy:    "relevance",
		Highlight: true,
	}
}

// SearchResult holds one page of hits.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"tookMs"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit is one matching job.
type SearchHit struct {
	ID            string            `json:"id"`
	Score         float64           `json:"score"`
	Title         string            `json:"title"`
	ModelID       string            `json:"modelId,omitempty"`
	Source        string            `json:"source,omitempty"`
	Duration      int               `json:"duration,omitzero"`
	ChapterTitles []string          `json:"chapterTitles,omitempty"`
	Highlights    map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)

	switch params.SortBy {
	case "recent":
		req.SortBy([]string{"-created_at", "-_score"})
	default:
		req.SortBy([]string{"-_score", "-created_at"})
	}

	if params.Highlight && params.Query != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("chapter_titles")
	}

	req.Fields = []string{"title", "model_id", "source", "duration", "chapter_titles"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := SearchHit{ID: hit.ID, Score: hit.Score}

		if v, ok := hit.Fields["title"].(string); ok {
			h.Title = v
		}
		if v, ok := hit.Fields["model_id"].(string); ok {
			h.ModelID = v
		}
		if v, ok := hit.Fields["source"].(string); ok {
			h.Source = v
		}
		if v, ok := hit.Fields["duration"].(float64); ok {
			h.Duration = int(v)
		}
		h.ChapterTitles = stringsField(hit.Fields["chapter_titles"])

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// stringsField reads a stored multi-value field; Bleve returns a bare
// string when only one value was indexed.
func stringsField(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		chapterMatch := bleve.NewMatchQuery(q)
		chapterMatch.SetField("chapter_titles")
		chapterMatch.SetBoost(1.5)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, chapterMatch, fuzzy}

		// Prefix query for autocomplete (minimum 2 chars)
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.ModelID != "" {
		tq := bleve.NewTermQuery(params.ModelID)
		tq.SetField("model_id")
		queries = append(queries, tq)
	}

	if params.Source != "" {
		tq := bleve.NewTermQuery(params.Source)
		tq.SetField("source")
		queries = append(queries, tq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
