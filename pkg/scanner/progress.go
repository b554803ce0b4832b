package scanner

import (
	"sync"
	"time"
)

// Progress is the externally visible state of the current or last scan
type Progress struct {
	Active    bool   `json:"active"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Status    string `json:"status"`
}

// progressTracker keeps scan progress and clears it shortly after
// completion, so late readers see an idle state instead of a stale one
type progressTracker struct {
	mu        sync.Mutex
	cur       Progress
	hideAfter time.Duration
	gen       int // invalidates pending clears when a new scan starts
}

func newProgressTracker(hideAfter time.Duration) *progressTracker {
	if hideAfter == 0 {
		hideAfter = 2 * time.Second
	}
	return &progressTracker{hideAfter: hideAfter}
}

func (p *progressTracker) start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.cur = Progress{Active: true, Total: total, Status: "scanning"}
}

func (p *progressTracker) update(processed int, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cur.Active {
		return
	}
	p.cur.Processed = processed
	p.cur.Status = status
}

// finish marks the scan done and schedules the auto-clear
func (p *progressTracker) finish(status string) {
	p.mu.Lock()
	p.cur.Active = false
	p.cur.Processed = p.cur.Total
	p.cur.Status = status
	gen := p.gen
	p.mu.Unlock()

	time.AfterFunc(p.hideAfter, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.gen == gen && !p.cur.Active {
			p.cur = Progress{}
		}
	})
}

func (p *progressTracker) snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}
