package status

import (
	"time"
)

// Status is the lifecycle state of an analysis.
type Status string

const (
	Queued         Status = "queued"
	Processing     Status = "processing"
	ATSAnalysis    Status = "ats_analysis"
	ContentReview  Status = "content_review"
	SkillsAnalysis Status = "skills_analysis"
	Completed      Status = "completed"
	Error          Status = "error"
	Cancelled      Status = "cancelled"
)

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	switch s {
	case Completed, Error, Cancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case Queued, Processing, ATSAnalysis, ContentReview, SkillsAnalysis, Completed, Error, Cancelled:
		return true
	}
	return false
}

// Record is the persisted state of one analysis. AnalysisID is the topic
// subscribers listen on.
type Record struct {
	AnalysisID   string         `bson:"analysisId" json:"analysisId"`
	UserID       string         `bson:"userId,omitempty" json:"userId,omitempty"`
	Status       Status         `bson:"status" json:"status"`
	CurrentStage string         `bson:"currentStage" json:"currentStage"`
	Progress     int            `bson:"progress" json:"progress"`
	Results      map[string]any `bson:"results,omitempty" json:"results,omitempty"`
	Error        string         `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt    time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time      `bson:"updatedAt" json:"updatedAt"`
	CompletedAt  *time.Time     `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Snapshot is the part of a record pushed to live subscribers.
type Snapshot struct {
	Status       Status
	Progress     int
	CurrentStage string
	Error        string
	// Results is set only for completed records.
	Results   map[string]any
	UpdatedAt time.Time
}

// Snapshot extracts the broadcast payload.
func (r Record) Snapshot() Snapshot {
	s := Snapshot{
		Status:       r.Status,
		Progress:     r.Progress,
		CurrentStage: r.CurrentStage,
		Error:        r.Error,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Status == Completed {
		s.Results = r.Results
	}
	return s
}

// Patch is a status transition written by the analysis pipeline.
type Patch struct {
	Status       Status
	CurrentStage string
	// Progress is ignored when lower than the stored value.
	Progress *int
	Results  map[string]any
	Error    string
}

// Validate checks the patch on its own, without the stored record.
func (p Patch) Validate() error {
	if !p.Status.Valid() {
		return ErrInvalidPatch
	}
	if p.Progress != nil && (*p.Progress < 0 || *p.Progress > 100) {
		return ErrInvalidPatch
	}
	if p.Status == Completed && p.Results == nil {
		return ErrInvalidPatch
	}
	if p.Status != Completed && p.Results != nil {
		return ErrInvalidPatch
	}
	return nil
}

func (p Patch) stage() string {
	if p.CurrentStage != "" {
		return p.CurrentStage
	}
	return string(p.Status)
}
