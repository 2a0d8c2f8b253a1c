package service

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// RankConfig tunes lexical ranking.
type RankConfig struct {
	TopK int
	// ShortTokenLen drops query tokens of this many runes or fewer.
	ShortTokenLen int
	// PhraseBonus is added when a chunk contains the whole query.
	PhraseBonus float64
}

// DefaultRankConfig provides sane defaults for ranking.
func DefaultRankConfig() RankConfig {
	return RankConfig{
		TopK:          5,
		ShortTokenLen: 3,
		PhraseBonus:   100,
	}
}

// Ranker scores chunks against a query by weighted keyword counts and picks a
// page-diverse top K. It holds no state beyond its config, so one Ranker can
// serve concurrent calls over a shared corpus.
type Ranker struct {
	cfg RankConfig
}

func NewRanker(cfg RankConfig) *Ranker {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultRankConfig().TopK
	}
	if cfg.ShortTokenLen < 0 {
		cfg.ShortTokenLen = 0
	}
	return &Ranker{cfg: cfg}
}

// TopK returns the default result size.
func (r *Ranker) TopK() int {
	return r.cfg.TopK
}

// Rank returns at most topK chunks from corpus, best first. A non-positive
// topK uses the configured default.
func (r *Ranker) Rank(query string, corpus []domain.Chunk, topK int) []domain.Chunk {
	scored := r.RankScored(query, corpus, topK)
	out := make([]domain.Chunk, len(scored))
	for i, sc := range scored {
		out[i] = sc.Chunk
	}
	return out
}

// RankScored is Rank with scores and corpus positions attached.
func (r *Ranker) RankScored(query string, corpus []domain.Chunk, topK int) []domain.ScoredChunk {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	if len(corpus) == 0 {
		return nil
	}

	q := normalizeQuery(query)
	tokens := r.queryTokens(q)

	scored := make([]domain.ScoredChunk, len(corpus))
	for i, c := range corpus {
		scored[i] = domain.ScoredChunk{Chunk: c, Score: r.score(q, tokens, c.Content), Index: i}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return selectDiverse(scored, topK)
}

// Score returns the lexical score of one chunk for query.
func (r *Ranker) Score(query, content string) float64 {
	q := normalizeQuery(query)
	return r.score(q, r.queryTokens(q), content)
}

func (r *Ranker) score(q string, tokens []string, content string) float64 {
	if q == "" {
		return 0
	}
	lower := strings.ToLower(content)

	var total float64
	for _, tok := range tokens {
		if n := strings.Count(lower, tok); n > 0 {
			total += float64(n * utf8.RuneCountInString(tok))
		}
	}
	if strings.Contains(lower, q) {
		total += r.cfg.PhraseBonus
	}
	return total
}

func (r *Ranker) queryTokens(q string) []string {
	fields := strings.FieldsFunc(q, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > r.cfg.ShortTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// selectDiverse picks one chunk per (source, page) in score order, backfills
// from the remainder when there are fewer distinct pages than topK, and
// returns the picks in score order.
func selectDiverse(sorted []domain.ScoredChunk, topK int) []domain.ScoredChunk {
	if topK > len(sorted) {
		topK = len(sorted)
	}

	picked := make([]bool, len(sorted))
	seen := make(map[domain.CitationKey]struct{}, topK)
	count := 0
	for i, sc := range sorted {
		if count == topK {
			break
		}
		key := domain.CitationKey{Page: sc.Page, SourceID: sc.SourceID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		picked[i] = true
		count++
	}
	for i := range sorted {
		if count == topK {
			break
		}
		if !picked[i] {
			picked[i] = true
			count++
		}
	}

	out := make([]domain.ScoredChunk, 0, topK)
	for i, sc := range sorted {
		if picked[i] {
			out = append(out, sc)
		}
	}
	return out
}
