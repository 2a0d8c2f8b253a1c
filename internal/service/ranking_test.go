package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func biologyCorpus() []domain.Chunk {
	return []domain.Chunk{
		{Page: 1, SourceID: "bio", Content: "The mitochondria generate ATP through cellular respiration in eukaryotic cells."},
		{Page: 1, SourceID: "bio", Content: "Ribosomes translate messenger RNA into polypeptide chains."},
		{Page: 2, SourceID: "bio", Content: "Chloroplasts capture light energy during photosynthesis."},
		{Page: 2, SourceID: "bio", Content: "The Calvin cycle fixes carbon dioxide into sugars."},
		{Page: 2, SourceID: "bio", Content: "Stomata regulate gas exchange in leaves."},
	}
}

func TestRanker_PrefersMatchAndDiversifies(t *testing.T) {
	r := NewRanker(DefaultRankConfig())
	corpus := biologyCorpus()

	got := r.Rank("mitochondria function", corpus, 2)

	require.Len(t, got, 2)
	assert.Equal(t, corpus[0], got[0])
	assert.Equal(t, 2, got[1].Page)
	assert.Equal(t, corpus[2], got[1])
}

func TestRanker_Score(t *testing.T) {
	r := NewRanker(DefaultRankConfig())

	tests := []struct {
		name    string
		query   string
		content string
		want    float64
	}{
		{"empty query", "", "anything at all", 0},
		{"short tokens ignored", "the cell", "the cell", 4 + 100},
		{"count times length", "cell", "Cell walls and cell membranes", 8 + 100},
		{"phrase bonus", "cell membrane", "the cell membrane is thin", 4 + 8 + 100},
		{"case insensitive", "ENZYME", "enzyme kinetics", 6 + 100},
		{"punctuation in query", "what is osmosis?", "osmosis moves water", 7},
		{"no match", "nucleus", "ribosome", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Score(tt.query, tt.content))
		})
	}
}

func TestRanker_EmptyInputs(t *testing.T) {
	r := NewRanker(DefaultRankConfig())

	assert.Empty(t, r.Rank("mitochondria", nil, 3))

	// empty query keeps corpus order but still spreads across pages
	got := r.Rank("", biologyCorpus(), 2)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Page)
	assert.Equal(t, 2, got[1].Page)
}

func TestRanker_BackfillsWhenPagesRunOut(t *testing.T) {
	r := NewRanker(DefaultRankConfig())
	corpus := biologyCorpus()

	got := r.RankScored("photosynthesis", corpus, 4)

	require.Len(t, got, 4)
	assert.Equal(t, 2, got[0].Index)
	pages := map[int]bool{}
	for i, sc := range got {
		pages[sc.Page] = true
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Score, sc.Score)
		}
	}
	assert.Len(t, pages, 2)
}

func TestRanker_TopKLargerThanCorpus(t *testing.T) {
	r := NewRanker(DefaultRankConfig())
	got := r.Rank("cells", biologyCorpus(), 50)
	assert.Len(t, got, 5)
}

func TestRanker_DefaultTopK(t *testing.T) {
	r := NewRanker(RankConfig{TopK: 2, ShortTokenLen: 3, PhraseBonus: 100})
	assert.Len(t, r.Rank("cells", biologyCorpus(), 0), 2)
	assert.Equal(t, 2, r.TopK())
}

func TestRanker_DiversityAcrossPages(t *testing.T) {
	r := NewRanker(DefaultRankConfig())

	var corpus []domain.Chunk
	for page := 1; page <= 6; page++ {
		for i := 0; i < 3; i++ {
			corpus = append(corpus, domain.Chunk{
				Page:     page,
				SourceID: "doc",
				Content:  fmt.Sprintf("page %d part %d enzyme enzyme %s", page, i, strings.Repeat("substrate ", page)),
			})
		}
	}

	for topK := 1; topK <= 6; topK++ {
		got := r.Rank("enzyme substrate", corpus, topK)
		pages := map[int]bool{}
		for _, c := range got {
			pages[c.Page] = true
		}
		assert.Len(t, pages, topK, "topK=%d", topK)
	}
}

func TestRanker_SamePageDifferentSourcesAreDistinct(t *testing.T) {
	r := NewRanker(DefaultRankConfig())
	corpus := []domain.Chunk{
		{Page: 3, SourceID: "a", Content: "glycolysis glycolysis"},
		{Page: 3, SourceID: "a", Content: "glycolysis"},
		{Page: 3, SourceID: "b", Content: "glycolysis"},
	}

	got := r.Rank("glycolysis", corpus, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SourceID)
	assert.Equal(t, "b", got[1].SourceID)
}

func TestRanker_Deterministic(t *testing.T) {
	r := NewRanker(DefaultRankConfig())
	corpus := biologyCorpus()

	first := r.RankScored("light energy cells", corpus, 3)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, r.RankScored("light energy cells", corpus, 3))
	}
}

func TestRanker_ConcurrentReadsShareCorpus(t *testing.T) {
	r := NewRanker(DefaultRankConfig())
	corpus := biologyCorpus()
	want := r.Rank("carbon sugars", corpus, 3)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, r.Rank("carbon sugars", corpus, 3))
		}()
	}
	wg.Wait()
	assert.Equal(t, biologyCorpus(), corpus)
}

