package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// Corpus is the immutable chunk set of one document selection. It is
// rebuilt wholesale when the selection changes and is read-only afterwards,
// so concurrent ranking calls may share it.
type Corpus struct {
	Key         string
	DocumentIDs []string
	Chunks      []domain.Chunk
	BuiltAt     time.Time
}

// Empty reports whether the corpus has no chunks.
func (c *Corpus) Empty() bool {
	return c == nil || len(c.Chunks) == 0
}

// Content renders chunks as page-tagged blocks, stopping before maxRunes.
func (c *Corpus) Content(maxRunes int) string {
	var b strings.Builder
	used := 0
	for _, ch := range c.Chunks {
		block := formatEvidence(ch)
		n := len([]rune(block))
		sep := 0
		if used > 0 {
			sep = 2
		}
		if maxRunes > 0 && used+sep+n > maxRunes {
			if used == 0 {
				b.WriteString(string([]rune(block)[:maxRunes]))
			}
			break
		}
		if sep > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		used += sep + n
	}
	return b.String()
}

// CorpusKey identifies a document selection. Order is significant because it
// fixes chunk order and thus ranking ties.
func CorpusKey(documentIDs []string) string {
	return strings.Join(documentIDs, ",")
}

func parseCorpusKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ",")
}

// CorpusPageSource is what corpus building needs from persistence.
type CorpusPageSource interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentPage, error)
}

type corpusSource struct {
	DocumentRepositoryInterface
	PageRepositoryInterface
}

// NewCorpusPageSource joins the document and page repositories.
func NewCorpusPageSource(docs DocumentRepositoryInterface, pages PageRepositoryInterface) CorpusPageSource {
	return corpusSource{docs, pages}
}

// CorpusBuilder chunks stored pages into a corpus.
type CorpusBuilder struct {
	source CorpusPageSource
	chunk  ChunkConfig
}

func NewCorpusBuilder(source CorpusPageSource, chunk ChunkConfig) *CorpusBuilder {
	return &CorpusBuilder{source: source, chunk: chunk}
}

// Build chunks every document in order. Each chunk carries its document id
// as SourceID. Documents that are not ready fail the build.
func (b *CorpusBuilder) Build(ctx context.Context, documentIDs []string) (*Corpus, error) {
	if len(documentIDs) == 0 {
		return nil, domain.ErrNoDocumentsSelected
	}

	corpus := &Corpus{
		Key:         CorpusKey(documentIDs),
		DocumentIDs: append([]string(nil), documentIDs...),
		BuiltAt:     time.Now().UTC(),
	}
	for _, id := range documentIDs {
		doc, err := b.source.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !doc.IsReady() {
			return nil, notReadyError(doc)
		}

		pages, err := b.source.ListByDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		raw := make([]domain.RawPage, len(pages))
		for i, p := range pages {
			raw[i] = domain.RawPage{Number: p.Number, Text: p.Text}
		}
		corpus.Chunks = append(corpus.Chunks, ChunkPages(raw, id, b.chunk)...)
	}
	return corpus, nil
}

// LoaderSet keeps one SourceLoader per owner, such as a chat session or a
// document viewer. With an idle TTL set, owners not touched within the TTL
// are dropped on the next call to For.
type LoaderSet[T any] struct {
	fetch   FetchFunc[T]
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	loaders map[string]*SourceLoader[T]
	touched map[string]time.Time
}

func NewLoaderSet[T any](fetch FetchFunc[T]) *LoaderSet[T] {
	return &LoaderSet[T]{
		fetch:   fetch,
		now:     time.Now,
		loaders: make(map[string]*SourceLoader[T]),
		touched: make(map[string]time.Time),
	}
}

// WithIdleTTL enables eviction of owners idle for longer than ttl.
func (s *LoaderSet[T]) WithIdleTTL(ttl time.Duration) *LoaderSet[T] {
	s.idleTTL = ttl
	return s
}

// For returns the owner's loader, creating it on first use.
func (s *LoaderSet[T]) For(owner string) *SourceLoader[T] {
	s.mu.Lock()
	now := s.now()
	evicted := s.evictIdleLocked(now, owner)
	l, ok := s.loaders[owner]
	if !ok {
		l = NewSourceLoader(s.fetch)
		s.loaders[owner] = l
	}
	s.touched[owner] = now
	s.mu.Unlock()

	for _, e := range evicted {
		e.Reset()
	}
	return l
}

// Peek returns the owner's loader without creating or touching it.
func (s *LoaderSet[T]) Peek(owner string) (*SourceLoader[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loaders[owner]
	return l, ok
}

// EvictIdle drops every owner idle past the TTL and returns how many went.
func (s *LoaderSet[T]) EvictIdle() int {
	s.mu.Lock()
	evicted := s.evictIdleLocked(s.now(), "")
	s.mu.Unlock()

	for _, e := range evicted {
		e.Reset()
	}
	return len(evicted)
}

// evictIdleLocked unlinks idle owners other than keep. Loaders with a fetch
// in flight stay. The caller resets the returned loaders outside s.mu.
func (s *LoaderSet[T]) evictIdleLocked(now time.Time, keep string) []*SourceLoader[T] {
	if s.idleTTL <= 0 {
		return nil
	}
	var evicted []*SourceLoader[T]
	for owner, at := range s.touched {
		if owner == keep || now.Sub(at) <= s.idleTTL {
			continue
		}
		l := s.loaders[owner]
		if l.Snapshot().State == LoadStateLoading {
			continue
		}
		delete(s.loaders, owner)
		delete(s.touched, owner)
		evicted = append(evicted, l)
	}
	return evicted
}

// Drop resets and forgets the owner's loader.
func (s *LoaderSet[T]) Drop(owner string) {
	s.mu.Lock()
	l, ok := s.loaders[owner]
	delete(s.loaders, owner)
	delete(s.touched, owner)
	s.mu.Unlock()
	if ok {
		l.Reset()
	}
}

// Len returns the number of tracked owners.
func (s *LoaderSet[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loaders)
}

// SessionCorpora owns the corpus of every active chat session. A session
// that switches documents while a rebuild is running gets the newest
// selection; the older build is discarded when it finishes.
type SessionCorpora struct {
	loaders *LoaderSet[*Corpus]
}

func NewSessionCorpora(builder *CorpusBuilder) *SessionCorpora {
	fetch := func(ctx context.Context, key string) (*Corpus, func(), error) {
		corpus, err := builder.Build(ctx, parseCorpusKey(key))
		return corpus, nil, err
	}
	return &SessionCorpora{loaders: NewLoaderSet(fetch)}
}

// Rebuild builds the corpus for documentIDs and commits it to the session.
func (s *SessionCorpora) Rebuild(ctx context.Context, sessionID string, documentIDs []string) (*Corpus, error) {
	return s.loaders.For(sessionID).Load(ctx, CorpusKey(documentIDs))
}

// Get returns the session's committed corpus for documentIDs, rebuilding
// it when the session holds none or holds another selection.
func (s *SessionCorpora) Get(ctx context.Context, sessionID string, documentIDs []string) (*Corpus, error) {
	key := CorpusKey(documentIDs)
	if c, ok := s.loaders.For(sessionID).Current(key); ok {
		return c, nil
	}
	return s.Rebuild(ctx, sessionID, documentIDs)
}

// Drop forgets the session's corpus.
func (s *SessionCorpora) Drop(sessionID string) {
	s.loaders.Drop(sessionID)
}
