package progress

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Event represents a single progress update.
type Event struct {
	// Status indicates the current overall status (e.g., "started", "processing", "completed").
	Status string `json:"status"`
	// Percentage represents the progress completion from 0.0 to 100.0.
	Percentage float64 `json:"percentage"`
	// Step provides a high-level description of the current phase (e.g., "transcoding").
	Step string `json:"step"`
	// Stage offers a more detailed description within the current step.
	Stage string `json:"stage"`
	// Timestamp marks when the event occurred in RFC3339 format.
	Timestamp string `json:"timestamp"`
}

// Reporter is the interface the transcode driver reports through. Progress
// is advisory only; implementations must never block the caller.
type Reporter interface {
	// Start initializes progress reporting with the total unit count.
	Start(total int64)
	// Update sets the current progress along with step and stage descriptions.
	Update(current int64, step, stage string)
	// Complete marks the operation as finished.
	Complete()
	// Updates returns a channel emitting Event values until Complete.
	Updates() <-chan Event
}

type reporterOptions struct {
	throttle    time.Duration
	description string
}

// ReporterOption configures a DefaultReporter.
type ReporterOption func(*reporterOptions)

// WithThrottle sets the minimum interval between events sent to the Updates
// channel, preventing listeners from being flooded. Defaults to no throttling.
func WithThrottle(duration time.Duration) ReporterOption {
	return func(opts *reporterOptions) {
		opts.throttle = duration
	}
}

// WithDescription sets the description text for the console progress bar.
func WithDescription(desc string) ReporterOption {
	return func(opts *reporterOptions) {
		opts.description = desc
	}
}

// DefaultReporter renders a progress bar on stderr via
// github.com/schollz/progressbar/v3 and mirrors events to a channel.
type DefaultReporter struct {
	total      int64
	current    int64
	bar        *progressbar.ProgressBar
	opts       reporterOptions
	updatesCh  chan Event
	lastUpdate time.Time
	event      Event
	mu         sync.Mutex
}

// NewReporter creates a new DefaultReporter.
func NewReporter(opts ...ReporterOption) *DefaultReporter {
	options := reporterOptions{
		description: "Processing...",
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &DefaultReporter{
		opts: options,
		event: Event{
			Status:    "initialized",
			Timestamp: time.Now().Format(time.RFC3339),
		},
		lastUpdate: time.Now(),
		updatesCh:  make(chan Event, 10),
	}
}

// Start initializes the progress bar with the total unit count.
func (r *DefaultReporter) Start(total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = total
	r.current = 0
	r.event.Status = "started"
	r.event.Percentage = 0
	r.event.Timestamp = time.Now().Format(time.RFC3339)

	r.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(r.opts.description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	r.send(true)
}

// Update sets the current progress and reports it.
// Events on the Updates channel may be throttled.
func (r *DefaultReporter) Update(current int64, step, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil {
		return
	}
	if current > r.total {
		current = r.total
	}
	r.current = current

	percentage := 0.0
	if r.total > 0 {
		percentage = float64(current) / float64(r.total) * 100
	}
	r.event.Percentage = percentage
	r.event.Step = step
	r.event.Stage = stage
	r.event.Status = "processing"
	r.event.Timestamp = time.Now().Format(time.RFC3339)

	_ = r.bar.Set64(current)

	r.send(false)
}

// Complete finishes the progress bar and sends a final event.
func (r *DefaultReporter) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil {
		return
	}

	_ = r.bar.Finish()
	r.current = r.total
	r.event.Percentage = 100
	r.event.Status = "completed"
	r.event.Timestamp = time.Now().Format(time.RFC3339)

	r.send(true)
	r.bar = nil
	close(r.updatesCh)
}

// Updates returns the channel for receiving progress events.
func (r *DefaultReporter) Updates() <-chan Event {
	return r.updatesCh
}

// send pushes the current event to the channel, honoring the throttle unless
// forced. Requires r.mu to be held.
func (r *DefaultReporter) send(force bool) {
	now := time.Now()
	if !force && now.Sub(r.lastUpdate) < r.opts.throttle {
		return
	}
	r.lastUpdate = now

	select {
	case r.updatesCh <- r.event:
	default:
	}
}
