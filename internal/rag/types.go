package rag

// RelevantDocument is a retrieved note reference with its similarity score.
// Scores are passed through from the index service unmodified; rounding for
// display is the caller's concern.
type RelevantDocument struct {
	Title      string
	Similarity float64
}

// Timings is the per-phase latency breakdown of one query. Observational
// only; it never alters the result.
type Timings struct {
	// SyncMs is the time spent ensuring the index was fresh (0 when the
	// cooldown made the sync unnecessary).
	SyncMs int64
	// QueryMs covers retrieval and answer generation inside the index service.
	QueryMs int64
	// TotalMs is the end-to-end pipeline time.
	TotalMs int64
}

// QueryResult is the structured answer to one user question.
type QueryResult struct {
	Question          string
	Answer            string
	RelevantDocuments []RelevantDocument
	// EmptyCorpus marks the soft "no text notes yet" result, which is not an
	// error. The UI renders it differently from a failure.
	EmptyCorpus bool
	Timings     Timings
}
