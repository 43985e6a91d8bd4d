// Package reporter defines vidreg's progress-reporting surface and its
// three implementations: a no-op, a structured log writer, and a
// colorized terminal writer. Modeled on the teacher's encode-event
// reporter, with event types replaced end to end for registry/handle/
// iterator lifecycle instead of encode progress.
package reporter

import "time"

// HardwareSummary reports the host running the scan.
type HardwareSummary struct {
	Hostname       string
	LogicalCores   int
	PhysicalCores  int
}

// RegistrySummary reports how a registry was configured at startup.
type RegistrySummary struct {
	DataContainer   string
	MaxThread       int
	MaxPrefetch     int
	MaxAwakeHandles int64
}

// VideoOpenedInfo reports a single successfully probed video.
type VideoOpenedInfo struct {
	Path       string
	NumFrames  int
	Width      int
	Height     int
	FrameRate  string
}

// VideoSkippedInfo reports a video that failed to open, and why.
type VideoSkippedInfo struct {
	Path   string
	Reason string
}

// IteratorSnapshot reports the prefetch iterator's live scheduling
// state, matching the quantities named in spec §4.6/§8 (P7, P8).
type IteratorSnapshot struct {
	ItemsDelivered int
	QueueDepth     int
	RunningWorkers int
	TargetWorkers  float64
}

// BatchStartInfo reports the set of files about to be scanned/opened.
type BatchStartInfo struct {
	TotalFiles int
	Source     string // directory path or archive path
}

// BatchSummary reports the outcome of a full directory/archive scan.
type BatchSummary struct {
	TotalFiles   int
	OpenedCount  int
	SkippedCount int
	TotalDuration time.Duration
}

// ReporterError carries a user-facing error report.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// Reporter receives progress events from the CLI as it scans, opens,
// and iterates over videos.
type Reporter interface {
	Hardware(summary HardwareSummary)
	RegistryReady(summary RegistrySummary)
	VideoOpened(info VideoOpenedInfo)
	VideoSkipped(info VideoSkippedInfo)
	IteratorProgress(snapshot IteratorSnapshot)
	BatchStarted(info BatchStartInfo)
	BatchComplete(summary BatchSummary)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	Verbose(message string)
}

// CompositeReporter fans every event out to a fixed set of reporters, in
// order. Used to drive a terminal reporter and a log reporter from the
// same event stream.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter builds a CompositeReporter over the given reporters.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) Hardware(s HardwareSummary) {
	for _, r := range c.reporters {
		r.Hardware(s)
	}
}

func (c *CompositeReporter) RegistryReady(s RegistrySummary) {
	for _, r := range c.reporters {
		r.RegistryReady(s)
	}
}

func (c *CompositeReporter) VideoOpened(i VideoOpenedInfo) {
	for _, r := range c.reporters {
		r.VideoOpened(i)
	}
}

func (c *CompositeReporter) VideoSkipped(i VideoSkippedInfo) {
	for _, r := range c.reporters {
		r.VideoSkipped(i)
	}
}

func (c *CompositeReporter) IteratorProgress(s IteratorSnapshot) {
	for _, r := range c.reporters {
		r.IteratorProgress(s)
	}
}

func (c *CompositeReporter) BatchStarted(i BatchStartInfo) {
	for _, r := range c.reporters {
		r.BatchStarted(i)
	}
}

func (c *CompositeReporter) BatchComplete(s BatchSummary) {
	for _, r := range c.reporters {
		r.BatchComplete(s)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) OperationComplete(message string) {
	for _, r := range c.reporters {
		r.OperationComplete(message)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}

// NullReporter discards every event. The CLI does not use it; with
// logging disabled it reports to the terminal only.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)             {}
func (NullReporter) RegistryReady(RegistrySummary)        {}
func (NullReporter) VideoOpened(VideoOpenedInfo)          {}
func (NullReporter) VideoSkipped(VideoSkippedInfo)        {}
func (NullReporter) IteratorProgress(IteratorSnapshot)    {}
func (NullReporter) BatchStarted(BatchStartInfo)          {}
func (NullReporter) BatchComplete(BatchSummary)           {}
func (NullReporter) Warning(string)                       {}
func (NullReporter) Error(ReporterError)                  {}
func (NullReporter) OperationComplete(string)              {}
func (NullReporter) Verbose(string)                       {}
