package service

import "context"

type testTxRepos struct {
	documents  DocumentRepositoryInterface
	pages      PageRepositoryInterface
	ingestJobs IngestJobRepositoryInterface
}

func (t *testTxRepos) Documents() DocumentRepositoryInterface {
	return t.documents
}

func (t *testTxRepos) Pages() PageRepositoryInterface {
	return t.pages
}

func (t *testTxRepos) IngestJobs() IngestJobRepositoryInterface {
	return t.ingestJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
