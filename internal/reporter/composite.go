package reporter

import "github.com/gopq/gopq/internal/gop"

// Composite fans events out to multiple reporters.
type Composite struct {
	reporters []Reporter
}

// NewComposite creates a reporter that forwards to all given reporters.
func NewComposite(reporters ...Reporter) *Composite {
	return &Composite{reporters: reporters}
}

func (c *Composite) RunStarted(info RunInfo) {
	for _, r := range c.reporters {
		r.RunStarted(info)
	}
}

func (c *Composite) GOPStarted(gopIdx int, frameCount int, geometry string) {
	for _, r := range c.reporters {
		r.GOPStarted(gopIdx, frameCount, geometry)
	}
}

func (c *Composite) GOPComplete(gopIdx int, rec gop.Record) {
	for _, r := range c.reporters {
		r.GOPComplete(gopIdx, rec)
	}
}

func (c *Composite) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *Composite) Error(err RunError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *Composite) RunComplete(summary RunSummary) {
	for _, r := range c.reporters {
		r.RunComplete(summary)
	}
}
