package entity

import "time"

// Outcome is the terminal state of a single tag within a run.
type Outcome string

const (
	OutcomeSkippedDefault Outcome = "skipped-default"
	OutcomeSeeded         Outcome = "seeded"
	OutcomeCacheHit       Outcome = "cache-hit"
	OutcomeNotModified    Outcome = "not-modified"
	OutcomeUpdated        Outcome = "updated"
	OutcomeDownloaded     Outcome = "downloaded"
	OutcomeCollision      Outcome = "collision"
	OutcomeFailed         Outcome = "failed"
)

// SyncState is persisted between runs to request only changed tags.
type SyncState struct {
	LastSync time.Time `json:"lastSync"`
}

// FetchResult describes a finished HTTP round trip for one media URL.
type FetchResult struct {
	NotModified bool
	ETag        string
	ContentType string
	Size        int64
}

type RunResult struct {
	ID             string          `json:"id"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     time.Time       `json:"finishedAt"`
	Tags           int             `json:"tags"`
	Outcomes       map[Outcome]int `json:"outcomes"`
	Errors         int             `json:"errors"`
	Orphans        []string        `json:"orphans"`
	MissingStashID []string        `json:"missingStashID"`
	Collisions     []string        `json:"collisions"`
	Carried        int             `json:"carried"`
}

func (r *RunResult) Count(o Outcome) {
	if r.Outcomes == nil {
		r.Outcomes = make(map[Outcome]int)
	}
	r.Outcomes[o]++
	if o == OutcomeFailed {
		r.Errors++
	}
}

// SyncOutput is everything a finished run hands over for persistence.
type SyncOutput struct {
	Result     *RunResult
	Inventory  Inventory
	Validators map[string]string
	Tags       []*Tag
	Scanned    map[string]struct{} // canonical names found on disk before the run
	Claimed    map[string]struct{} // names matched or written for some tag
}
