// Package agent runs the reasoning loop that turns a user message into a
// finalized assistant answer, alternating model completions with tool calls
// and reporting progress as a typed event stream.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pulsechat/pulsechat"
	"github.com/pulsechat/pulsechat/completion"
	"github.com/pulsechat/pulsechat/event"
	"github.com/pulsechat/pulsechat/store"
	"github.com/pulsechat/pulsechat/tool"
)

// Store is the slice of persistence the loop needs: replaying recent turns
// and saving the finalized answer.
type Store interface {
	RecentMessages(ctx context.Context, conversationID, userID string, limit int) ([]store.StoredMessage, error)
	SaveMessage(ctx context.Context, conversationID, userID string, role pulsechat.Role, content string) (store.StoredMessage, error)
}

// Agent orchestrates completions, tool calls, and persistence for one
// conversation turn at a time. It holds no per-invocation state and is safe
// for concurrent use.
type Agent struct {
	completion completion.Client
	registry   *tool.Registry
	store      Store
	logger     *slog.Logger
}

// New creates an agent from a completion client, a tool registry, and a
// message store.
func New(c completion.Client, registry *tool.Registry, st Store, opts ...AgentOption) *Agent {
	a := &Agent{
		completion: c,
		registry:   registry,
		store:      st,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AgentOption configures the agent itself, as opposed to a single invocation.
type AgentOption func(*Agent)

// WithLogger sets the logger used by the reasoning loop.
func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) {
		a.logger = l
	}
}

// Process runs the reasoning loop for one user message and returns the
// event stream. The returned channel is unbuffered: each event is handed to
// the consumer before the loop proceeds, and the channel is closed after
// the single terminal event. Cancelling ctx stops the loop promptly.
//
// The caller is expected to have saved the user message already; Process
// persists only the finalized assistant answer.
func (a *Agent) Process(ctx context.Context, userMessage, conversationID, userID string, opts ...Option) <-chan event.Event {
	ch := event.NewChannel()
	go a.run(ctx, userMessage, conversationID, userID, ch, opts...)
	return ch
}

func (a *Agent) run(ctx context.Context, userMessage, conversationID, userID string, ch chan event.Event, opts ...Option) {
	defer close(ch)

	options := ApplyOptions(opts...)
	log := a.logger.With("conversation_id", conversationID, "user_id", userID)

	terminal := false
	defer func() {
		if r := recover(); r != nil {
			log.Error("reasoning loop panicked", "panic", r)
			if !terminal {
				event.Emit(ctx, ch, event.Event{Kind: event.Error, Err: fmt.Sprintf("internal error: %v", r)})
			}
		}
	}()

	if !event.Emit(ctx, ch, event.Event{Kind: event.Loading, Status: "Agent is thinking..."}) {
		return
	}

	history, err := a.seedHistory(ctx, userMessage, conversationID, userID, options)
	if err != nil {
		log.Error("loading conversation history", "error", err)
		terminal = true
		event.Emit(ctx, ch, event.Event{Kind: event.Error, Err: "Failed to load conversation history"})
		return
	}

	final, ok := a.iterate(ctx, history, ch, options, log)
	if !ok {
		terminal = true
		return
	}

	if event.Emit(ctx, ch, event.Event{Kind: event.Streaming, Status: "Streaming response..."}) {
		for _, tok := range strings.Fields(final) {
			if !event.Emit(ctx, ch, event.Event{Kind: event.Token, Token: tok + " "}) {
				log.Warn("consumer gone during token streaming")
				break
			}
		}
	}

	// The answer is finalized at this point, so the save must happen even
	// when the consumer has disconnected mid-stream.
	saved, err := a.store.SaveMessage(context.WithoutCancel(ctx), conversationID, userID, pulsechat.RoleAssistant, final)
	if err != nil {
		log.Error("saving assistant message", "error", err)
		terminal = true
		event.Emit(ctx, ch, event.Event{Kind: event.Error, Err: "Failed to save response"})
		return
	}

	log.Info("turn finalized", "message_id", saved.ID)
	terminal = true
	event.Emit(ctx, ch, event.Event{Kind: event.Done, MessageID: saved.ID})
}

// iterate runs the generate/act cycle until the model produces a final
// answer or the iteration cap is reached. It returns the finalized answer
// text and whether the caller should proceed to streaming; on false an
// error event has already been emitted or the consumer is gone.
func (a *Agent) iterate(ctx context.Context, history []pulsechat.Message, ch chan event.Event, options *Options, log *slog.Logger) (string, bool) {
	registered := a.registry.Names()
	last := ""

	for iteration := 1; ; iteration++ {
		if options.MaxIterations > 0 && iteration > options.MaxIterations {
			log.Warn("iteration cap reached, answering with last completion", "max_iterations", options.MaxIterations)
			return last, true
		}

		if !event.Emit(ctx, ch, event.Event{Kind: event.Responding, Status: "Generating response..."}) {
			return "", false
		}

		text, err := a.generate(ctx, history, options)
		if err != nil {
			a.emitGenerationError(ctx, ch, err, log)
			return "", false
		}
		last = text

		action := ParseAction(text, registered)
		if action == nil {
			log.Info("final answer produced", "iteration", iteration)
			return text, true
		}

		log.Info("tool requested", "iteration", iteration, "tool", action.Tool)

		display := action.Tool
		if t, found := a.registry.Get(action.Tool); found {
			display = t.DisplayName()
		}
		started := event.Event{
			Kind:       event.ToolActivity,
			Tool:       action.Tool,
			ToolStatus: event.ToolStarted,
			Message:    "Using " + display + "...",
		}
		if !event.Emit(ctx, ch, started) {
			return "", false
		}

		res := a.registry.Invoke(ctx, action.Tool, action.Input)

		completed := event.Event{
			Kind:       event.ToolActivity,
			Tool:       action.Tool,
			ToolStatus: event.ToolCompleted,
		}
		if !res.Success {
			completed.Err = res.Err
			log.Warn("tool call failed", "tool", action.Tool, "error", res.Err)
		}
		if !event.Emit(ctx, ch, completed) {
			return "", false
		}

		// The tool outcome, success or failure, is folded back into the
		// conversation as a user turn so the model can react to it.
		observation := res.Payload
		if !res.Success {
			observation = res.Err + ". Answer from your own knowledge instead."
		}
		history = append(history,
			pulsechat.NewAssistantMessage(text),
			pulsechat.NewUserMessage("Tool result:\n"+observation),
		)
	}
}

func (a *Agent) generate(ctx context.Context, history []pulsechat.Message, options *Options) (string, error) {
	if options.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.GenerationTimeout)
		defer cancel()
	}
	return a.completion.Complete(ctx, history)
}

func (a *Agent) emitGenerationError(ctx context.Context, ch chan event.Event, err error, log *slog.Logger) {
	log.Error("generating completion", "error", err)

	msg := err.Error()
	if errors.Is(err, completion.ErrGenerationTimeout) {
		msg = "Request timed out. Please try again."
	}
	event.Emit(ctx, ch, event.Event{Kind: event.Error, Err: msg})
}

// seedHistory assembles the model context for this turn: system prompt,
// recent stored turns, and the current user message. The transport saves
// the user turn before starting the loop, so the replayed tail may already
// end with it; in that case it is not appended twice.
func (a *Agent) seedHistory(ctx context.Context, userMessage, conversationID, userID string, options *Options) ([]pulsechat.Message, error) {
	history := []pulsechat.Message{pulsechat.NewSystemMessage(a.systemPrompt(options))}

	recent, err := a.store.RecentMessages(ctx, conversationID, userID, options.HistoryLimit)
	if err != nil {
		return nil, err
	}
	for _, m := range recent {
		history = append(history, pulsechat.Message{Role: m.Role, Content: m.Content})
	}

	tail := history[len(history)-1]
	if len(history) == 1 || tail.Role != pulsechat.RoleUser || tail.Content != userMessage {
		history = append(history, pulsechat.NewUserMessage(userMessage))
	}
	return history, nil
}

func (a *Agent) systemPrompt(options *Options) string {
	if options.SystemPrompt != "" {
		return options.SystemPrompt
	}

	names := a.registry.Names()

	var b strings.Builder
	b.WriteString("You are a helpful AI assistant with access to tools.\n\n")
	b.WriteString("You have access to the following tools:\n")
	for i, name := range names {
		t, _ := a.registry.Get(name)
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, name, t.Description())
	}
	b.WriteString("\nWhen you need to use a tool, respond with exactly this format:\n")
	b.WriteString("ACTION: <tool_name>\n")
	b.WriteString("INPUT: <tool_input>\n\n")
	b.WriteString("I will run the tool and give you the result, and you can continue from there.\n\n")
	b.WriteString("If you do not need a tool, just answer the user directly.")
	if len(names) > 0 {
		b.WriteString("\n\nTool names must match exactly: " + strings.Join(names, ", ") + ".")
	}
	return b.String()
}
