package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/matthewloh/pragmadic/internal/conversation"
	"github.com/matthewloh/pragmadic/internal/provider"
	"github.com/matthewloh/pragmadic/internal/tools"
)

// runTurn drives a single turn through the state machine. The committed
// log grows in this order: the user message at turn start, one assistant
// tool-call message plus one tool result message per dispatch round, and
// the final assistant reply at finalization. Tool exchanges are committed
// under a non-cancellable context so cancellation never loses the record
// of an effect that ran.
func (o *Orchestrator) runTurn(ctx context.Context, id uuid.UUID, userText string, handler Handler) (conversation.Message, error) {
	ts := newTurnState()

	// partial holds streamed assistant text that is not yet committed. A
	// failing turn reports it on the turnError event; it never reaches
	// the store.
	var partial string

	fail := func(err error) (conversation.Message, error) {
		o.advance(ts, StateErrored)
		handler(Event{Kind: EventTurnError, ConversationID: id, Err: err.Error(), Partial: partial})
		return conversation.Message{}, err
	}

	if _, err := o.store.CreateIfAbsent(ctx, id); err != nil {
		return fail(fmt.Errorf("create conversation: %w", err))
	}
	conv, err := o.store.Read(ctx, id)
	if err != nil {
		return fail(fmt.Errorf("read conversation: %w", err))
	}

	userMsg, err := o.store.Append(ctx, id, conversation.Message{
		Role:    conversation.RoleUser,
		Content: userText,
		UserID:  UserIDFromContext(ctx),
	})
	if err != nil {
		return fail(fmt.Errorf("append user message: %w", err))
	}
	history := append(conv.Messages, userMsg)

	bridge := toolEventBridge{conversationID: id, handler: handler}
	defs := o.registry.Definitions()

	for round := 0; ; round++ {
		if round >= o.maxToolRounds {
			return fail(ErrToolRoundsExceeded)
		}

		o.advance(ts, StateAwaitingModel)
		if err := o.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return fail(ErrTurnCanceled)
			}
			return fail(fmt.Errorf("rate limiter: %w", err))
		}
		stream, err := o.completion.Stream(ctx, provider.Request{
			SystemPrompt: o.systemPrompt,
			Messages:     history,
			Tools:        defs,
		})
		if err != nil {
			if ctx.Err() != nil {
				return fail(ErrTurnCanceled)
			}
			return fail(&ProviderError{Err: err})
		}

		o.advance(ts, StateStreaming)
		roundText, requests, err := o.consume(id, stream, handler)
		partial = roundText
		if err != nil {
			if ctx.Err() != nil {
				return fail(ErrTurnCanceled)
			}
			return fail(&ProviderError{Err: err})
		}
		// A canceled provider stream may end cleanly instead of
		// surfacing the context error; the text it produced must not
		// be committed.
		if ctx.Err() != nil {
			return fail(ErrTurnCanceled)
		}

		if len(requests) == 0 {
			o.advance(ts, StateFinalizing)
			if roundText == "" {
				roundText = FallbackReply
			}
			reply, err := o.store.Append(ctx, id, conversation.Message{
				Role:    conversation.RoleAssistant,
				Content: roundText,
			})
			if err != nil {
				return fail(fmt.Errorf("append assistant message: %w", err))
			}
			o.advance(ts, StateCompleted)
			handler(Event{Kind: EventTurnComplete, ConversationID: id, Message: &reply})
			o.logger.Debug("turn completed",
				"conversation_id", id, "rounds", round+1, "reply_seq", reply.Seq)
			return reply, nil
		}

		o.advance(ts, StateToolDispatch)
		if err := o.dispatchRound(ctx, id, roundText, requests, bridge, &history); err != nil {
			return fail(err)
		}
		// The round's text was committed with the tool call message;
		// only text streamed after this point remains uncommitted.
		partial = ""
		if ctx.Err() != nil {
			return fail(ErrTurnCanceled)
		}
	}
}

// consume drains the stream, forwarding text deltas to handler and
// collecting tool requests. The stream is always closed. On a stream
// error the text accumulated so far is returned alongside it.
func (o *Orchestrator) consume(id uuid.UUID, stream provider.Stream, handler Handler) (string, []tools.Request, error) {
	defer stream.Close()

	var text strings.Builder
	var requests []tools.Request
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return text.String(), requests, nil
		}
		if err != nil {
			return text.String(), nil, err
		}
		if ev.TextDelta != "" {
			text.WriteString(ev.TextDelta)
			handler(Event{Kind: EventDelta, ConversationID: id, Delta: ev.TextDelta})
		}
		if ev.ToolRequest != nil {
			requests = append(requests, tools.Request{
				CallID: uuid.New(),
				Name:   ev.ToolRequest.Name,
				Args:   ev.ToolRequest.Args,
			})
		}
	}
}

// dispatchRound executes one batch of tool requests sequentially and
// commits the exchange. Execution and the commits run under a context
// detached from cancellation: once a tool effect starts it finishes and
// its record survives, even when the turn is being canceled.
func (o *Orchestrator) dispatchRound(ctx context.Context, id uuid.UUID, roundText string, requests []tools.Request, bridge toolEventBridge, history *[]conversation.Message) error {
	effectCtx := context.WithoutCancel(ctx)

	invoked := make([]conversation.ToolCall, 0, len(requests))
	records := make([]conversation.ToolCall, 0, len(requests))
	for _, req := range requests {
		record := o.executor.Dispatch(effectCtx, req, bridge)
		invoked = append(invoked, conversation.ToolCall{
			ID:    record.ID,
			Name:  record.Name,
			Args:  record.Args,
			Phase: conversation.PhaseInvoked,
		})
		records = append(records, record)
	}

	callMsg, err := o.store.Append(effectCtx, id, conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   roundText,
		ToolCalls: invoked,
	})
	if err != nil {
		return fmt.Errorf("append tool call message: %w", err)
	}
	resultMsg, err := o.store.Append(effectCtx, id, conversation.Message{
		Role:      conversation.RoleTool,
		ToolCalls: records,
	})
	if err != nil {
		return fmt.Errorf("append tool result message: %w", err)
	}
	*history = append(*history, callMsg, resultMsg)
	return nil
}
