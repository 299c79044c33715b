package pipeline

import "time"

// SetBackoff shortens retry delays in tests.
func (p *Pipeline) SetBackoff(base, maxBackoff time.Duration) {
	p.baseBackoff = base
	p.maxBackoff = maxBackoff
}
