// Package streaming drives a streaming agent reply through the transcript
// reducer.
package streaming

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	agentServices "github.com/watercrawl/WaterCrawl-sub003/internal/domain/services/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/transcript"
)

// Outcome describes how a stream ended
type Outcome struct {
	// Block is the final transcript (never nil Entries)
	Block agentModels.MessageBlock

	// Err is set when the stream reported an error or the transport failed
	Err *agentModels.StreamError

	// Cancelled is set when the caller aborted the stream
	Cancelled bool

	// TransportErr is the underlying read error, if any
	TransportErr error

	// Events is the number of events consumed
	Events int
}

// UpdateFunc receives the live view after each applied event
type UpdateFunc func(live agentModels.MessageBlock)

// CompleteFunc receives the outcome exactly once when the stream ends
type CompleteFunc func(Outcome)

// Ingestor consumes one EventSource in arrival order.
//
// Each event is applied to the transcript state synchronously and the live
// view is re-derived and published before the next event is read. The stream
// ends on done, an error event, end of input, a transport failure or context
// cancellation; all of them finalize the state the same way.
type Ingestor struct {
	source     agentServices.EventSource
	state      *transcript.State
	onUpdate   UpdateFunc
	onComplete CompleteFunc
	logger     *slog.Logger

	completeOnce sync.Once
}

// NewIngestor creates an Ingestor over source.
// onUpdate and onComplete may be nil. opts configure the transcript state.
func NewIngestor(
	source agentServices.EventSource,
	onUpdate UpdateFunc,
	onComplete CompleteFunc,
	logger *slog.Logger,
	opts ...transcript.Option,
) *Ingestor {
	opts = append([]transcript.Option{transcript.WithLogger(logger)}, opts...)
	return &Ingestor{
		source:     source,
		state:      transcript.NewState(opts...),
		onUpdate:   onUpdate,
		onComplete: onComplete,
		logger:     logger,
	}
}

// Run reads events until the stream ends and returns the outcome.
// Cancelling ctx closes the source; the accumulated state is finalized as if
// a done event had arrived.
func (i *Ingestor) Run(ctx context.Context) Outcome {
	defer i.source.Close()

	stop := context.AfterFunc(ctx, func() {
		i.source.Close()
	})
	defer stop()

	events := 0
	for {
		if ctx.Err() != nil {
			return i.finish(Outcome{Cancelled: true, Events: events})
		}

		ev, err := i.source.Next()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return i.finish(Outcome{Cancelled: true, Events: events})
			case errors.Is(err, io.EOF):
				return i.finish(Outcome{Events: events})
			default:
				i.logger.Warn("stream transport failed",
					"error", err,
					"events", events,
				)
				return i.finish(Outcome{TransportErr: err, Events: events})
			}
		}

		events++
		i.state.Apply(ev)
		if i.onUpdate != nil {
			i.onUpdate(i.state.LiveView())
		}

		if ev.Kind == agentModels.EventDone || i.state.Err() != nil {
			return i.finish(Outcome{Events: events})
		}
	}
}

func (i *Ingestor) finish(out Outcome) Outcome {
	out.Block = i.state.FinalView()
	out.Err = i.state.Err()
	if out.Err == nil && out.TransportErr != nil {
		out.Err = &agentModels.StreamError{Message: agentModels.DefaultErrorMessage}
	}

	i.completeOnce.Do(func() {
		i.logger.Debug("stream finished",
			"conversation_id", out.Block.ConversationID,
			"entries", len(out.Block.Entries),
			"events", out.Events,
			"cancelled", out.Cancelled,
			"error", out.Err != nil,
		)
		if i.onComplete != nil {
			i.onComplete(out)
		}
	})
	return out
}
