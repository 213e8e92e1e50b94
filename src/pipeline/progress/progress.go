package progress

import (
	"sync"

	"github.com/apex/log"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
)

type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

type Stage string

const (
	StageReceived       Stage = "received"
	StageIngested       Stage = "ingested"
	StageSeparated      Stage = "separated"
	StagePostProcessing Stage = "postprocessing"
	StageCompleted      Stage = "completed"
	StageFailed         Stage = "failed"
)

// Event is one textual status emission from the pipeline. Stem is
// empty for file level events. Fraction carries the share of stems
// processed so far and only moves during postprocessing.
type Event struct {
	Level    Level     `json:"level"`
	Stage    Stage     `json:"stage"`
	Stem     stem.Name `json:"stem,omitempty"`
	Message  string    `json:"message"`
	Fraction float64   `json:"fraction"`
}

type Sink interface {
	Emit(event Event)
}

// Collector accumulates events in emission order for returning to the
// caller after processing finishes.
type Collector struct {
	mutex  sync.Mutex
	events []Event
}

var _ Sink = &Collector{}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Emit(event Event) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.events = append(c.events, event)
}

func (c *Collector) Events() []Event {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	copied := make([]Event, len(c.events))
	copy(copied, c.events)
	return copied
}

// LogSink mirrors pipeline events into the structured log.
type LogSink struct{}

var _ Sink = LogSink{}

func (LogSink) Emit(event Event) {
	logger := log.WithFields(log.Fields{
		"stage":    string(event.Stage),
		"stem":     string(event.Stem),
		"fraction": event.Fraction,
	})

	switch event.Level {
	case Warning:
		logger.Warn(event.Message)
	case Error:
		logger.Error(event.Message)
	default:
		logger.Info(event.Message)
	}
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

var _ Sink = Multi{}

func (m Multi) Emit(event Event) {
	for _, sink := range m {
		sink.Emit(event)
	}
}
