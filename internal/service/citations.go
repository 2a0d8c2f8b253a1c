package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

const fallbackSnippetRunes = 100

var (
	pageMentionPattern = regexp.MustCompile(`(?i)\bpage\s+(\d+)`)
	// Quoted spans of 20 to 150 characters. Single quotes must sit on word
	// boundaries so apostrophes inside words do not open a quote.
	doubleQuotedPattern = regexp.MustCompile(`["“]([^"“”]{20,150})["”]`)
	singleQuotedPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])['‘]([^'‘’]{20,150})['’](?:[^\p{L}\p{N}]|$)`)
)

// ExtractCitations finds "page N" mentions in answer and resolves each
// against evidence. Mentions of pages with no evidence chunk are dropped.
// Citations are unique per (page, source) and follow first-mention order.
func ExtractCitations(answer string, evidence []domain.Chunk) []domain.Citation {
	if answer == "" || len(evidence) == 0 {
		return nil
	}

	byPage := make(map[int]domain.Chunk, len(evidence))
	for _, c := range evidence {
		if _, ok := byPage[c.Page]; !ok {
			byPage[c.Page] = c
		}
	}

	mentions := pageMentionPattern.FindAllStringSubmatchIndex(answer, -1)
	seen := make(map[domain.CitationKey]struct{}, len(mentions))
	var citations []domain.Citation

	for i, m := range mentions {
		page, err := strconv.Atoi(answer[m[2]:m[3]])
		if err != nil {
			continue
		}
		chunk, ok := byPage[page]
		if !ok {
			continue
		}
		key := domain.CitationKey{Page: page, SourceID: chunk.SourceID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		end := len(answer)
		if i+1 < len(mentions) {
			end = mentions[i+1][0]
		}
		snippet := quotedSnippet(answer[m[1]:end])
		if snippet == "" {
			snippet = fallbackSnippet(chunk.Content)
		}

		citations = append(citations, domain.Citation{
			Page:     page,
			Snippet:  snippet,
			SourceID: chunk.SourceID,
		})
	}
	return citations
}

// quotedSnippet returns the earliest quoted span in text.
func quotedSnippet(text string) string {
	double := doubleQuotedPattern.FindStringSubmatchIndex(text)
	single := singleQuotedPattern.FindStringSubmatchIndex(text)

	var loc []int
	switch {
	case double == nil:
		loc = single
	case single == nil:
		loc = double
	case single[2] < double[2]:
		loc = single
	default:
		loc = double
	}
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(text[loc[2]:loc[3]])
}

func fallbackSnippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) > fallbackSnippetRunes {
		runes = runes[:fallbackSnippetRunes]
	}
	return strings.TrimSpace(string(runes))
}
