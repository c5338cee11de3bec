package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/vault-agent/internal/chat"
	"github.com/iksnae/vault-agent/internal/gateway"
	"github.com/iksnae/vault-agent/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatRequests(t *testing.T, env *testEnv) []gateway.ChatRequest {
	t.Helper()
	var out []gateway.ChatRequest
	for _, r := range env.agent.RequestsTo("/chat") {
		var req gateway.ChatRequest
		r.Decode(t, &req)
		out = append(out, req)
	}
	return out
}

func TestChat_OneShot(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run(t, "chat", "-m", "hello there")
	require.NoError(t, err, out)
	assert.Contains(t, out, chat.PendingText)
	assert.Contains(t, out, "echo: hello there")

	reqs := chatRequests(t, env)
	require.Len(t, reqs, 1)
	assert.Nil(t, reqs[0].ConversationID)
}

func TestChat_OneShotError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.agent.Handle("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"detail": "model crashed"})
	})

	out, err := env.run(t, "chat", "-m", "hi")
	require.Error(t, err)
	assert.Equal(t, 500, gateway.StatusCode(err))
	assert.Contains(t, out, "Sorry, an error occurred")
}

func TestChat_WarnsWhenAgentNotReady(t *testing.T) {
	env := newTestEnv(t, nil)
	env.agent.SetReady(false)

	out, err := env.run(t, "chat", "-m", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "is not ready")
}

func TestChat_DocumentReference(t *testing.T) {
	env := newTestEnv(t, map[string]string{"Projects/plan.md": "# Plan"})

	out, err := env.run(t, "chat", "--document", filepath.Join(env.vault, "Projects", "plan.md"), "--line", "12", "-m", "what next?")
	require.NoError(t, err, out)

	reqs := chatRequests(t, env)
	require.Len(t, reqs, 1)
	assert.Equal(t, "what next?\n\nCurrent document: Projects/plan.md\nCurrent line: 12", reqs[0].Message)
	assert.NotContains(t, reqs[0].Message, "# Plan", "file content is never sent")
}

func TestChat_DocumentReferenceDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	cfgFile := filepath.Join(testutil.CreateTempDir(t), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("conversation_context: false\n"), 0600))

	out, err := env.run(t, "--config", cfgFile, "chat", "--document", "a.md", "-m", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "conversation_context is off")

	reqs := chatRequests(t, env)
	require.Len(t, reqs, 1)
	assert.Equal(t, "hi", reqs[0].Message)
}

func TestChat_PipedConversation(t *testing.T) {
	env := newTestEnv(t, nil)
	saveDir := testutil.CreateTempDir(t)
	input := strings.Join([]string{
		"first",
		"",
		"second",
		"/status",
		"/save " + saveDir + string(os.PathSeparator),
		"/new",
		"third",
		"/bogus",
		"/quit",
		"never sent",
	}, "\n")

	out, err := runCommandWithInput(t, input, env.args("chat")...)
	require.NoError(t, err, out)

	reqs := chatRequests(t, env)
	require.Len(t, reqs, 3)
	assert.Nil(t, reqs[0].ConversationID)
	require.NotNil(t, reqs[1].ConversationID)
	assert.Equal(t, "conv-1", *reqs[1].ConversationID)
	assert.Nil(t, reqs[2].ConversationID, "/new starts a new conversation")

	assert.Contains(t, out, "echo: second")
	assert.Contains(t, out, "Agent ready")
	assert.Contains(t, out, "Conversation: conv-1")
	assert.Contains(t, out, "Started a new conversation")
	assert.Contains(t, out, "unknown command /bogus")
	assert.NotContains(t, out, "never sent")

	saved := filepath.Join(saveDir, "conversation_conv-1.md")
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Conversation conv-1")
	assert.Contains(t, string(data), "echo: first")
	assert.NotContains(t, string(data), chat.PendingText)
}

func TestChat_DocAndFileCommands(t *testing.T) {
	env := newTestEnv(t, map[string]string{"Inbox/report.pdf": "pdf"})
	input := strings.Join([]string{
		"/doc Daily/today.md 3",
		"hello",
		"/doc",
		"/file Inbox/report.pdf summarize",
		"/doc x.md zero",
	}, "\n")

	out, err := runCommandWithInput(t, input, env.args("chat")...)
	require.NoError(t, err, out)

	reqs := chatRequests(t, env)
	require.Len(t, reqs, 2)
	assert.Equal(t, "hello\n\nCurrent document: Daily/today.md\nCurrent line: 3", reqs[0].Message)
	assert.Equal(t, "summarize Inbox/report.pdf", reqs[1].Message)
	assert.Contains(t, out, `invalid line number "zero"`)
}

func TestChat_StopWithNothingPending(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := runCommandWithInput(t, "/stop\n/help\n", env.args("chat")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to stop")
	assert.Contains(t, out, "/save [file]")
}

func TestOutcomeError(t *testing.T) {
	tests := []struct {
		outcome chat.Outcome
		wantErr bool
	}{
		{chat.OutcomeCompleted, false},
		{chat.OutcomeCancelled, true},
		{chat.OutcomeRejected, true},
		{chat.OutcomeErrored, true},
	}
	for _, tt := range tests {
		err := outcomeError(chat.Result{Outcome: tt.outcome, Err: assert.AnError})
		if (err != nil) != tt.wantErr {
			t.Errorf("outcomeError(%s) = %v, wantErr %v", tt.outcome, err, tt.wantErr)
		}
	}
}

// newTestREPL builds a chat loop against agent whose interrupts come from
// the returned channel
func newTestREPL(agent *testutil.FakeAgent, out io.Writer) (*chatREPL, chan os.Signal) {
	client := gateway.NewClient(agent.URL, "")
	sigs := make(chan os.Signal, 1)
	repl := &chatREPL{
		out:        out,
		session:    chat.NewSession(client),
		probe:      gateway.NewProbe(client),
		renderer:   newChatRenderer(out),
		interrupts: sigs,
	}
	repl.session.Subscribe(repl.renderer.onEvent)
	return repl, sigs
}

// blockingChat makes /chat hang until the client gives up, except for the
// messages listed in answer, which are echoed
func blockingChat(agent *testutil.FakeAgent, answer ...string) {
	agent.Handle("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var req gateway.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, a := range answer {
			if req.Message == a {
				testutil.WriteJSON(w, http.StatusOK, map[string]string{"response": "echo: " + a, "conversation_id": "conv-1"})
				return
			}
		}
		<-r.Context().Done()
	})
}

func runREPL(repl *chatREPL, in io.Reader) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- repl.run(context.Background(), in) }()
	return errc
}

func waitForState(t *testing.T, s *chat.Session, want chat.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("session state = %s, want %s", s.State(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChatREPL_InterruptStopsPipedReply(t *testing.T) {
	agent := testutil.NewFakeAgent(t)
	blockingChat(agent)
	var out bytes.Buffer
	repl, sigs := newTestREPL(agent, &out)

	errc := runREPL(repl, strings.NewReader("hello\n"))
	waitForState(t, repl.session, chat.StateAwaiting)
	sigs <- os.Interrupt

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("chat still waiting on the reply after an interrupt")
	}
	assert.Equal(t, chat.StateIdle, repl.session.State())
	assert.Equal(t, chat.OutcomeCancelled, repl.session.LastOutcome())
	assert.Contains(t, out.String(), chat.StoppedText)
}

func TestChatREPL_InterruptQuitsWhenIdle(t *testing.T) {
	agent := testutil.NewFakeAgent(t)
	var out bytes.Buffer
	repl, sigs := newTestREPL(agent, &out)

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	errc := runREPL(repl, pr)
	sigs <- os.Interrupt

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("interrupt with nothing pending did not end the chat")
	}
	assert.Empty(t, agent.RequestsTo("/chat"))
}

func TestChatREPL_LatestMessageWins(t *testing.T) {
	agent := testutil.NewFakeAgent(t)
	blockingChat(agent, "second")
	var out bytes.Buffer
	repl, _ := newTestREPL(agent, &out)
	repl.interactive = true

	errc := runREPL(repl, strings.NewReader("first\nsecond\n"))
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not finish")
	}

	msgs := repl.session.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, chat.RoleAgent, last.Role)
	assert.Equal(t, "echo: second", last.Content)

	var users []string
	for _, m := range msgs {
		if m.Role == chat.RoleUser {
			users = append(users, m.Content)
		}
		assert.NotEqual(t, "echo: first", m.Content)
	}
	assert.Equal(t, []string{"first", "second"}, users)
}
