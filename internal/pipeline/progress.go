package pipeline

import (
	"sync"
)

// Stage names a point in the pipeline at which an Event is emitted
type Stage string

const (
	StageStarted          Stage = "started"
	StageRasterized       Stage = "rasterized"
	StageExtracted        Stage = "extracted"
	StageTranslated       Stage = "translated"
	StageComposited       Stage = "composited"
	StageDegraded         Stage = "degraded"
	StageAssemblyComplete Stage = "assembly_complete"
)

// Event reports progress. Page is 1-based and 0 for document level events.
type Event struct {
	Stage   Stage  `json:"stage"`
	Page    int    `json:"page,omitempty"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// Diagnostic records a degraded page or region
type Diagnostic struct {
	Page    int    `json:"page"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Snapshot is a copy of the progress counters
type Snapshot struct {
	TotalPages        int          `json:"total_pages"`
	PagesDone         int          `json:"pages_done"`
	RegionsTranslated int          `json:"regions_translated"`
	RegionsFailed     int          `json:"regions_failed"`
	Diagnostics       []Diagnostic `json:"diagnostics,omitempty"`
	Percent           int          `json:"percent"`
	Stage             Stage        `json:"stage"`
	Done              bool         `json:"done"`
}

// Progress accumulates events from concurrent page workers. All updates and
// callback invocations happen under one mutex, so the callback sees events
// one at a time.
type Progress struct {
	mu       sync.Mutex
	callback func(Event)
	snap     Snapshot
}

// NewProgress creates a Progress that forwards every event to callback (may be nil)
func NewProgress(callback func(Event)) *Progress {
	return &Progress{callback: callback}
}

func (p *Progress) emit(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Stage {
	case StageStarted:
		p.snap.TotalPages = e.Total
	case StageComposited:
		p.snap.PagesDone++
	case StageDegraded:
		p.snap.Diagnostics = append(p.snap.Diagnostics, Diagnostic{Page: e.Page, Stage: e.Stage, Message: e.Message})
	case StageAssemblyComplete:
		p.snap.Done = true
	}
	p.snap.Stage = e.Stage
	p.snap.Percent = p.percent()
	e.Total = p.snap.TotalPages

	if p.callback != nil {
		p.callback(e)
	}
}

// regions records translation outcomes for one page
func (p *Progress) regions(translated, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.RegionsTranslated += translated
	p.snap.RegionsFailed += failed
}

// percent maps rasterization to 10, page work to 10..90 and assembly to 100
func (p *Progress) percent() int {
	switch {
	case p.snap.Done:
		return 100
	case p.snap.TotalPages == 0:
		return 0
	default:
		return 10 + 80*p.snap.PagesDone/p.snap.TotalPages
	}
}

// Snapshot returns a copy of the current counters
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snap
	s.Diagnostics = append([]Diagnostic(nil), p.snap.Diagnostics...)
	return s
}
