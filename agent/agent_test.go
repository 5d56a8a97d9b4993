package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsechat/pulsechat"
	"github.com/pulsechat/pulsechat/completion"
	"github.com/pulsechat/pulsechat/event"
	"github.com/pulsechat/pulsechat/store"
	"github.com/pulsechat/pulsechat/tool"
)

// scriptedClient returns canned completions in order, or an error when one
// is scripted for that turn.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
	seen    [][]pulsechat.Message
}

func (c *scriptedClient) Complete(ctx context.Context, messages []pulsechat.Message) (string, error) {
	i := c.calls
	c.calls++
	c.seen = append(c.seen, messages)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

type stubTool struct {
	name    string
	display string
	result  tool.Result
	inputs  []string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) DisplayName() string { return s.display }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Call(ctx context.Context, input string) tool.Result {
	s.inputs = append(s.inputs, input)
	return s.result
}

func newTestStore(t *testing.T, userID string) (*store.Memory, string) {
	t.Helper()
	st := store.NewMemory()
	conv, err := st.CreateConversation(context.Background(), userID, "test")
	require.NoError(t, err)
	return st, conv.ID
}

// collect drains the event stream to completion.
func collect(t *testing.T, ch <-chan event.Event) []event.Event {
	t.Helper()
	var events []event.Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func kinds(events []event.Event) []event.Kind {
	ks := make([]event.Kind, len(events))
	for i, e := range events {
		ks[i] = e.Kind
	}
	return ks
}

func TestAgent_Process_DirectAnswer(t *testing.T) {
	client := &scriptedClient{replies: []string{"Paris is the capital of France."}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, tool.NewRegistry(), st)

	events := collect(t, a.Process(context.Background(), "What is the capital of France?", convID, "user-1"))

	require.NotEmpty(t, events)
	assert.Equal(t, event.Loading, events[0].Kind)
	assert.Equal(t, event.Responding, events[1].Kind)
	assert.Equal(t, event.Streaming, events[2].Kind)

	var tokens []string
	for _, e := range events {
		if e.Kind == event.Token {
			tokens = append(tokens, e.Token)
		}
	}
	assert.Equal(t, "Paris is the capital of France.", strings.TrimSpace(strings.Join(tokens, "")))

	last := events[len(events)-1]
	assert.Equal(t, event.Done, last.Kind)
	assert.NotEmpty(t, last.MessageID)

	msgs, err := st.Messages(context.Background(), convID, "user-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, pulsechat.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Paris is the capital of France.", msgs[0].Content)
	assert.Equal(t, last.MessageID, msgs[0].ID)
}

func TestAgent_Process_ToolCall(t *testing.T) {
	search := &stubTool{
		name:    "Tavily_Search",
		display: "Web Search",
		result:  tool.Result{Success: true, Payload: "Go 1.25 was released in August 2025."},
	}
	registry := tool.NewRegistry()
	registry.MustRegister(search)

	client := &scriptedClient{replies: []string{
		"ACTION: Tavily_Search\nINPUT: latest Go release",
		"The latest Go release is 1.25.",
	}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, registry, st)

	events := collect(t, a.Process(context.Background(), "What is the latest Go release?", convID, "user-1"))

	assert.Equal(t, []event.Kind{
		event.Loading,
		event.Responding,
		event.ToolActivity,
		event.ToolActivity,
		event.Responding,
		event.Streaming,
		event.Token, event.Token, event.Token, event.Token, event.Token, event.Token,
		event.Done,
	}, kinds(events))

	started := events[2]
	assert.Equal(t, "Tavily_Search", started.Tool)
	assert.Equal(t, event.ToolStarted, started.ToolStatus)
	assert.Equal(t, "Using Web Search...", started.Message)

	completed := events[3]
	assert.Equal(t, event.ToolCompleted, completed.ToolStatus)
	assert.Empty(t, completed.Err)

	require.Equal(t, []string{"latest Go release"}, search.inputs)

	// The second completion sees the tool observation folded back in as a
	// user turn.
	secondSeen := client.seen[1]
	tail := secondSeen[len(secondSeen)-1]
	assert.Equal(t, pulsechat.RoleUser, tail.Role)
	assert.Equal(t, "Tool result:\nGo 1.25 was released in August 2025.", tail.Content)
	assert.Equal(t, pulsechat.RoleAssistant, secondSeen[len(secondSeen)-2].Role)
}

func TestAgent_Process_ToolFailureRecovers(t *testing.T) {
	search := &stubTool{
		name:    "Tavily_Search",
		display: "Web Search",
		result:  tool.Failure("Web search unavailable (API error: connection refused)"),
	}
	registry := tool.NewRegistry()
	registry.MustRegister(search)

	client := &scriptedClient{replies: []string{
		"ACTION: Tavily_Search\nINPUT: today's news",
		"I could not search, but generally speaking...",
	}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, registry, st)

	events := collect(t, a.Process(context.Background(), "What's in the news?", convID, "user-1"))

	completed := events[3]
	require.Equal(t, event.ToolActivity, completed.Kind)
	assert.Equal(t, event.ToolCompleted, completed.ToolStatus)
	assert.Equal(t, "Web search unavailable (API error: connection refused)", completed.Err)

	last := events[len(events)-1]
	assert.Equal(t, event.Done, last.Kind)

	tail := client.seen[1][len(client.seen[1])-1]
	assert.Contains(t, tail.Content, "Web search unavailable")
	assert.Contains(t, tail.Content, "Answer from your own knowledge instead.")
}

func TestAgent_Process_UnknownToolBecomesAnswer(t *testing.T) {
	// A directive naming an unregistered tool is not an action, so the
	// text stands as the final answer.
	client := &scriptedClient{replies: []string{"ACTION: Wikipedia\nINPUT: Go language"}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, tool.NewRegistry(), st)

	events := collect(t, a.Process(context.Background(), "Tell me about Go.", convID, "user-1"))

	for _, e := range events {
		assert.NotEqual(t, event.ToolActivity, e.Kind)
		assert.NotEqual(t, event.Error, e.Kind)
	}
	assert.Equal(t, event.Done, events[len(events)-1].Kind)
	assert.Equal(t, 1, client.calls)
}

func TestAgent_Process_GenerationTimeout(t *testing.T) {
	client := &scriptedClient{errs: []error{completion.ErrGenerationTimeout}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, tool.NewRegistry(), st)

	events := collect(t, a.Process(context.Background(), "Hello", convID, "user-1"))

	assert.Equal(t, []event.Kind{event.Loading, event.Responding, event.Error}, kinds(events))
	assert.Contains(t, events[2].Err, "timed out")

	msgs, err := st.Messages(context.Background(), convID, "user-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAgent_Process_GenerationFailure(t *testing.T) {
	genErr := &completion.GenerationError{Provider: "openai", Cause: errors.New("status 500")}
	client := &scriptedClient{errs: []error{genErr}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, tool.NewRegistry(), st)

	events := collect(t, a.Process(context.Background(), "Hello", convID, "user-1"))

	last := events[len(events)-1]
	assert.Equal(t, event.Error, last.Kind)
	assert.Equal(t, genErr.Error(), last.Err)
}

func TestAgent_Process_IterationCap(t *testing.T) {
	search := &stubTool{
		name:    "Tavily_Search",
		display: "Web Search",
		result:  tool.Result{Success: true, Payload: "more results"},
	}
	registry := tool.NewRegistry()
	registry.MustRegister(search)

	// The model never stops asking for the tool.
	client := &scriptedClient{replies: []string{
		"ACTION: Tavily_Search\nINPUT: one",
		"ACTION: Tavily_Search\nINPUT: two",
		"ACTION: Tavily_Search\nINPUT: three",
	}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, registry, st)

	events := collect(t, a.Process(context.Background(), "Search forever", convID, "user-1", WithMaxIterations(3)))

	assert.Equal(t, 3, client.calls)
	assert.Len(t, search.inputs, 3)

	last := events[len(events)-1]
	assert.Equal(t, event.Done, last.Kind)

	// The last completion text becomes the answer, directive and all.
	msgs, err := st.Messages(context.Background(), convID, "user-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ACTION: Tavily_Search\nINPUT: three", msgs[0].Content)
}

func TestAgent_Process_ExactlyOneTerminalEvent(t *testing.T) {
	cases := map[string]*scriptedClient{
		"success": {replies: []string{"All done."}},
		"timeout": {errs: []error{completion.ErrGenerationTimeout}},
	}

	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			st, convID := newTestStore(t, "user-1")
			a := New(client, tool.NewRegistry(), st)

			events := collect(t, a.Process(context.Background(), "Hello", convID, "user-1"))

			terminals := 0
			for i, e := range events {
				if e.Terminal() {
					terminals++
					assert.Equal(t, len(events)-1, i, "terminal event must be last")
				}
			}
			assert.Equal(t, 1, terminals)
		})
	}
}

func TestAgent_Process_SeedsHistory(t *testing.T) {
	st, convID := newTestStore(t, "user-1")
	ctx := context.Background()
	_, err := st.SaveMessage(ctx, convID, "user-1", pulsechat.RoleUser, "Hi")
	require.NoError(t, err)
	_, err = st.SaveMessage(ctx, convID, "user-1", pulsechat.RoleAssistant, "Hello! How can I help?")
	require.NoError(t, err)
	// The transport saves the current user turn before starting the loop.
	_, err = st.SaveMessage(ctx, convID, "user-1", pulsechat.RoleUser, "What did I just say?")
	require.NoError(t, err)

	client := &scriptedClient{replies: []string{"You said hi."}}
	a := New(client, tool.NewRegistry(), st)

	collect(t, a.Process(ctx, "What did I just say?", convID, "user-1"))

	require.Len(t, client.seen, 1)
	seen := client.seen[0]
	require.Len(t, seen, 4)
	assert.Equal(t, pulsechat.RoleSystem, seen[0].Role)
	assert.Equal(t, "Hi", seen[1].Content)
	assert.Equal(t, "Hello! How can I help?", seen[2].Content)
	// The already-saved user turn is not appended a second time.
	assert.Equal(t, pulsechat.RoleUser, seen[3].Role)
	assert.Equal(t, "What did I just say?", seen[3].Content)
}

func TestAgent_Process_AppendsUserTurnWhenNotSaved(t *testing.T) {
	st, convID := newTestStore(t, "user-1")

	client := &scriptedClient{replies: []string{"Hello there."}}
	a := New(client, tool.NewRegistry(), st)

	collect(t, a.Process(context.Background(), "Hello", convID, "user-1"))

	require.Len(t, client.seen, 1)
	seen := client.seen[0]
	require.Len(t, seen, 2)
	assert.Equal(t, pulsechat.RoleSystem, seen[0].Role)
	assert.Equal(t, pulsechat.RoleUser, seen[1].Role)
	assert.Equal(t, "Hello", seen[1].Content)
}

func TestAgent_Process_SystemPromptListsTools(t *testing.T) {
	registry := tool.NewRegistry()
	registry.MustRegister(&stubTool{name: "Tavily_Search", display: "Web Search"})
	registry.MustRegister(&stubTool{name: "Google_Trends_MCP", display: "Google Trends"})

	st, convID := newTestStore(t, "user-1")
	client := &scriptedClient{replies: []string{"Done."}}
	a := New(client, registry, st)

	collect(t, a.Process(context.Background(), "Hello", convID, "user-1"))

	prompt := client.seen[0][0].Content
	assert.Contains(t, prompt, "Tavily_Search")
	assert.Contains(t, prompt, "Google_Trends_MCP")
	assert.Contains(t, prompt, "ACTION:")
	assert.Contains(t, prompt, "INPUT:")
}

func TestAgent_Process_SystemPromptOverride(t *testing.T) {
	st, convID := newTestStore(t, "user-1")
	client := &scriptedClient{replies: []string{"Arr."}}
	a := New(client, tool.NewRegistry(), st)

	collect(t, a.Process(context.Background(), "Hello", convID, "user-1", WithSystemPrompt("Talk like a pirate.")))

	assert.Equal(t, "Talk like a pirate.", client.seen[0][0].Content)
}

func TestAgent_Process_ConsumerCancellation(t *testing.T) {
	client := &scriptedClient{replies: []string{"A long answer with many tokens to stream."}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, tool.NewRegistry(), st)

	ctx, cancel := context.WithCancel(context.Background())
	ch := a.Process(ctx, "Hello", convID, "user-1")

	// Read the first event, then walk away.
	first := <-ch
	assert.Equal(t, event.Loading, first.Kind)
	cancel()

	// The loop must notice and close the channel rather than block forever.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("stream did not terminate after cancellation")
		}
	}
}

func TestAgent_Process_SavesDespiteDisconnectAfterFinalization(t *testing.T) {
	client := &scriptedClient{replies: []string{"one two three four five six seven eight"}}
	st, convID := newTestStore(t, "user-1")
	a := New(client, tool.NewRegistry(), st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := a.Process(ctx, "Hello", convID, "user-1")

	// Consume up to the streaming phase, then disconnect mid-stream.
	for e := range ch {
		if e.Kind == event.Token {
			cancel()
			break
		}
	}
	for range ch {
	}

	// The finalized answer is persisted anyway.
	require.Eventually(t, func() bool {
		msgs, err := st.Messages(context.Background(), convID, "user-1")
		return err == nil && len(msgs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAgent_Process_HistoryLoadFailure(t *testing.T) {
	client := &scriptedClient{replies: []string{"never reached"}}
	st := store.NewMemory()
	a := New(client, tool.NewRegistry(), st)

	// Conversation does not exist, so history loading fails.
	events := collect(t, a.Process(context.Background(), "Hello", "missing", "user-1"))

	assert.Equal(t, []event.Kind{event.Loading, event.Error}, kinds(events))
	assert.Equal(t, "Failed to load conversation history", events[1].Err)
	assert.Zero(t, client.calls)
}
