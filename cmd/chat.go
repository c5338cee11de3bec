package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/iksnae/vault-agent/internal"
	"github.com/iksnae/vault-agent/internal/chat"
	"github.com/iksnae/vault-agent/internal/gateway"
	"github.com/iksnae/vault-agent/internal/vault"
	"github.com/spf13/cobra"
)

var (
	chatMessage  string
	chatDocument string
	chatLine     int
)

const chatHelp = `Commands:
  /stop                 Stop the reply being generated (Ctrl+C does the same)
  /new                  Start a new conversation
  /doc <path> [line]    Mention the note you are working on in every message
  /doc                  Stop mentioning a note
  /file <path> [text]   Send text with a vault file path attached
  /status               Show agent readiness and conversation details
  /save [file]          Export the transcript (format from extension, default md)
  /help                 Show this help
  /quit                 Leave the chat

Typing a new message while a reply is pending stops that reply.`

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent",
	Long: `Start an interactive chat with the agent service.

Each message continues the same conversation until /new. A reply can be
stopped at any time, and sending a new message stops the pending one.

` + chatHelp + `

Examples:
  vault-agent chat
  vault-agent chat -m "Summarize Inbox/meeting.md"
  vault-agent chat --document Projects/plan.md --line 12`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		client := newClient()
		out := cmd.OutOrStdout()
		repl := &chatREPL{
			out:      out,
			session:  chat.NewSession(client),
			probe:    gateway.NewProbe(client),
			renderer: newChatRenderer(out),
		}
		if v, err := openVault(); err == nil {
			repl.vault = v
		} else {
			internal.LogDebug("Vault unavailable, paths are sent as given: %v", err)
		}
		repl.session.Subscribe(repl.renderer.onEvent)

		if chatDocument != "" {
			repl.setDocument(chatDocument, chatLine)
		}

		if cfg.AutoConnect && !repl.probe.Check(ctx) {
			repl.renderer.warn(fmt.Sprintf("Agent service at %s is not ready; messages will fail until it is", client.BaseURL()))
		}

		if chatMessage != "" {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			return outcomeError(repl.session.Send(ctx, chatMessage))
		}
		return repl.run(ctx, cmd.InOrStdin())
	},
}

func outcomeError(res chat.Result) error {
	switch res.Outcome {
	case chat.OutcomeErrored:
		return res.Err
	case chat.OutcomeCancelled:
		return errors.New("reply stopped")
	case chat.OutcomeRejected:
		return errors.New("message is empty")
	}
	return nil
}

type chatREPL struct {
	out      io.Writer
	session  *chat.Session
	probe    *gateway.Probe
	renderer *chatRenderer
	vault    *vault.Vault

	// interrupts replaces os.Interrupt notifications when set
	interrupts <-chan os.Signal

	// Messages go to a single sender in the order they were typed. On a
	// terminal the loop keeps reading while a reply is pending; piped input
	// waits for each reply.
	interactive bool
	sendCtx     context.Context
	queue       chan outgoing
	inflight    chan struct{}
	stopLast    context.CancelFunc
	wg          sync.WaitGroup
}

// outgoing is one message waiting for the sender; done closes once its
// Send returns
type outgoing struct {
	ctx  context.Context
	text string
	done chan struct{}
}

func (c *chatREPL) run(ctx context.Context, in io.Reader) error {
	if f, ok := in.(*os.File); ok {
		c.interactive = internal.IsTerminal(f)
	}
	c.renderer.interactive = c.interactive

	done := make(chan struct{})
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	sigs := c.interrupts
	if sigs == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		defer signal.Stop(ch)
		sigs = ch
	}

	var stopSends context.CancelFunc
	c.sendCtx, stopSends = context.WithCancel(ctx)
	c.queue = make(chan outgoing, 8)
	c.wg.Add(1)
	go c.sender()

	defer func() {
		stopSends()
		close(done)
		close(c.queue)
		c.session.Cancel()
		c.wg.Wait()
	}()

	if c.interactive {
		c.renderer.info("Type a message, or /help for commands")
		c.renderer.prompt()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigs:
			if c.session.Cancel() {
				continue
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				// let the last piped reply finish
				c.await(ctx, sigs)
				return nil
			}
			if c.handle(ctx, line) {
				return nil
			}
			if !c.interactive && !c.await(ctx, sigs) {
				return nil
			}
			// replies print their own prompt
			text := strings.TrimSpace(line)
			if c.interactive && (text == "" || strings.HasPrefix(text, "/")) {
				c.renderer.prompt()
			}
		}
	}
}

// sender sends queued messages one at a time
func (c *chatREPL) sender() {
	defer c.wg.Done()
	for msg := range c.queue {
		if c.sendCtx.Err() == nil {
			c.session.Send(msg.ctx, msg.text)
		}
		close(msg.done)
	}
}

// await blocks until the last queued message has been answered. The first
// interrupt stops that reply, a second one ends the chat; it reports false
// when the chat should end.
func (c *chatREPL) await(ctx context.Context, sigs <-chan os.Signal) bool {
	done := c.inflight
	c.inflight = nil
	if done == nil {
		return true
	}
	stopped := false
	for {
		select {
		case <-done:
			return true
		case <-ctx.Done():
			return false
		case <-sigs:
			if stopped {
				return false
			}
			stopped = true
			c.stopLast()
			c.session.Cancel()
		}
	}
}

// handle processes one input line and reports whether to leave the chat
func (c *chatREPL) handle(ctx context.Context, line string) bool {
	text := strings.TrimSpace(line)
	if text == "" {
		return false
	}
	if !strings.HasPrefix(text, "/") {
		c.send(text)
		return false
	}

	name, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		c.renderer.println(chatHelp)
	case "/stop":
		if !c.session.Cancel() {
			c.renderer.info("Nothing to stop")
		}
	case "/new":
		c.session.Reset()
		c.renderer.info("Started a new conversation")
	case "/doc":
		path, lineArg, _ := strings.Cut(arg, " ")
		n := 0
		if lineArg != "" {
			parsed, err := strconv.Atoi(strings.TrimSpace(lineArg))
			if err != nil || parsed < 1 {
				c.renderer.fail(fmt.Sprintf("invalid line number %q", lineArg))
				return false
			}
			n = parsed
		}
		c.setDocument(path, n)
	case "/file":
		path, msg, _ := strings.Cut(arg, " ")
		if path == "" {
			c.renderer.fail("usage: /file <path> [text]")
			return false
		}
		c.send(strings.TrimSpace(strings.TrimSpace(msg)+" "+c.notePath(path)))
	case "/status":
		c.status(ctx)
	case "/save":
		exporter, err := exporterFor(arg, "")
		if err != nil {
			c.renderer.fail(err.Error())
			return false
		}
		path, err := writeTranscript(c.session.Transcript(), exporter, arg)
		if err != nil {
			c.renderer.fail(err.Error())
			return false
		}
		c.renderer.success("Saved transcript to " + path)
	default:
		c.renderer.fail(fmt.Sprintf("unknown command %s, try /help", name))
	}
	return false
}

// send stops the previous message, queued or pending, before queueing
// text, so the latest message is always the one answered
func (c *chatREPL) send(text string) {
	if c.stopLast != nil {
		c.stopLast()
	}
	c.session.Cancel()

	ctx, stop := context.WithCancel(c.sendCtx)
	msg := outgoing{ctx: ctx, text: text, done: make(chan struct{})}
	c.stopLast = stop
	c.queue <- msg
	c.inflight = msg.done
}

func (c *chatREPL) setDocument(path string, line int) {
	if path == "" {
		c.session.SetAugmenter(nil)
		c.renderer.info("No longer mentioning a document")
		return
	}
	if !cfg.ConversationContext {
		c.renderer.warn("conversation_context is off, the document will not be mentioned")
		return
	}
	ref := chat.DocumentReference{Path: c.notePath(path), Line: line}
	c.session.SetAugmenter(ref)
	if line > 0 {
		c.renderer.info(fmt.Sprintf("Mentioning %s, line %d", ref.Path, line))
	} else {
		c.renderer.info("Mentioning " + ref.Path)
	}
}

// notePath turns a path on disk into a vault path when it lies inside the
// vault. Anything else is taken as already vault-relative.
func (c *chatREPL) notePath(p string) string {
	if c.vault != nil {
		if _, err := os.Stat(p); err == nil {
			if abs, err := filepath.Abs(p); err == nil {
				if rel, err := c.vault.Rel(abs); err == nil {
					return rel
				}
			}
		}
	}
	return vault.Clean(p)
}

func (c *chatREPL) status(ctx context.Context) {
	st := c.probe.Status(ctx)
	if st.Ready {
		c.renderer.success(fmt.Sprintf("Agent ready (%s)", st.Latency.Round(time.Millisecond)))
	} else if st.Err != nil {
		c.renderer.fail(fmt.Sprintf("Agent not ready: %v", st.Err))
	} else {
		c.renderer.warn("Agent answered but is not initialized")
	}
	id := c.session.ConversationID()
	if id == "" {
		id = "(new)"
	}
	c.renderer.muted(fmt.Sprintf("Conversation: %s  State: %s  Last: %s", id, c.session.State(), c.session.LastOutcome()))
}

// chatRenderer prints agent messages as they arrive. Replies are rendered
// as Markdown on a terminal and as plain text otherwise.
type chatRenderer struct {
	mu          sync.Mutex
	out         io.Writer
	md          *glamour.TermRenderer
	interactive bool
}

func newChatRenderer(out io.Writer) *chatRenderer {
	r := &chatRenderer{out: out}
	if internal.IsTerminal(out) {
		md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			internal.LogDebug("Markdown rendering disabled: %v", err)
		} else {
			r.md = md
		}
	}
	return r
}

func (r *chatRenderer) onEvent(ev chat.Event) {
	if ev.Type != chat.EventMessageAdded || ev.Message.Role != chat.RoleAgent {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m := ev.Message
	switch m.Kind {
	case chat.KindPending:
		fmt.Fprintln(r.out, mutedStyle.Render(m.Content))
		return
	case chat.KindStopped:
		fmt.Fprintln(r.out, warningStyle.Render(m.Content))
	case chat.KindError:
		fmt.Fprintln(r.out, errorStyle.Render(m.Content))
	default:
		fmt.Fprintln(r.out, r.markdown(m.Content))
	}
	if r.interactive {
		fmt.Fprint(r.out, "> ")
	}
}

func (r *chatRenderer) markdown(s string) string {
	if r.md == nil {
		return s
	}
	rendered, err := r.md.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(rendered, "\n")
}

func (r *chatRenderer) prompt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, "> ")
}

func (r *chatRenderer) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}

func (r *chatRenderer) info(s string)    { r.println(infoStyle.Render(s)) }
func (r *chatRenderer) success(s string) { r.println(successStyle.Render("✓ ") + s) }
func (r *chatRenderer) warn(s string)    { r.println(warningStyle.Render("⚠ ") + s) }
func (r *chatRenderer) fail(s string)    { r.println(errorStyle.Render("✗ ") + s) }
func (r *chatRenderer) muted(s string)   { r.println(mutedStyle.Render(s)) }

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send one message, print the reply and exit")
	chatCmd.Flags().StringVar(&chatDocument, "document", "", "Note to mention in every message")
	chatCmd.Flags().IntVar(&chatLine, "line", 0, "Cursor line in --document")
}
