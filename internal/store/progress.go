package store

import "github.com/schollz/progressbar/v3"

// Progress adapts schollz/progressbar/v3 to IngestProgress, reporting bulk
// hash-insert batch progress during ingest.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewIngestProgress builds a terminal progress bar for a bulk insert of
// total hashes.
func NewIngestProgress(total int) *Progress {
	return &Progress{
		bar: progressbar.Default(int64(total), "inserting fingerprints"),
	}
}

// Add reports n more hashes inserted.
func (p *Progress) Add(n int) {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Add(n)
}
