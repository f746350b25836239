package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/soyeahso/matchchat/internal/api"
	"github.com/soyeahso/matchchat/internal/chat"
	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/eligibility"
	"github.com/soyeahso/matchchat/internal/hooks"
	"github.com/soyeahso/matchchat/internal/presence"
	"github.com/soyeahso/matchchat/internal/socket"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "chat <counterpartId>",
		Short: "Open a live conversation with a match",
		Long: `Open a live conversation with a match. Type a line and press enter to
send it. /quit or Ctrl-C leaves the conversation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, args[0], name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name for the counterpart")
	return cmd
}

func runChat(cmd *cobra.Command, counterpartID, name string) error {
	id, err := resolveIdentity()
	if err != nil {
		return err
	}
	if name == "" {
		name = counterpartID
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ui := &console{out: cmd.OutOrStdout(), me: id.UserID, peer: name}
	lines := readLines(ctx, cmd.InOrStdin())

	mgr := socket.New(socket.OptionsFromConfig(cfg), log)
	defer mgr.Close()

	mgr.On(domain.EventReconnectFailed, "cli", func(context.Context, hooks.Payload) error {
		ui.println(renderError("Could not reconnect to the chat service."))
		cancel()
		return nil
	})
	if err := mgr.Connect(ctx, id.Token); err != nil {
		return err
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, cfg.HandshakeTimeout())
	err = mgr.WaitConnected(waitCtx)
	waitCancel()
	switch {
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, socket.ErrUnauthorized):
		return fmt.Errorf("chat service rejected the token: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		ui.println(renderConnection(false, time.Now()))
	case err != nil:
		return err
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		ui.watchConnection(watchCtx, mgr)
	}()
	defer func() {
		stopWatch()
		<-watched
	}()

	client := api.NewFromConfig(cfg, id.Token, log)
	ctrl := chat.NewController(mgr, client, eligibility.NewGate(client, log), chat.Options{
		LocalUserID:    id.UserID,
		PageSize:       cfg.Chat.HistoryPageSize,
		TypingIdle:     cfg.TypingIdle(),
		PendingTimeout: cfg.PendingTimeout(),
		OnNotice:       ui.notice,
	}, log)
	defer ctrl.Close()
	ui.current = ctrl.Current

	sess, err := ctrl.Open(ctx, counterpartID, ui.confirm(lines))
	switch {
	case errors.Is(err, eligibility.ErrNotEligible):
		return fmt.Errorf("you cannot chat with %s", name)
	case errors.Is(err, eligibility.ErrUnavailable):
		return errors.New("could not check whether this chat is allowed; try again later")
	case errors.Is(err, eligibility.ErrDeclined):
		ui.println("Conversation not started.")
		return nil
	case err != nil:
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "/quit" {
				return nil
			}
			ui.send(sess, line)
		}
	}
}

// readLines streams stdin lines until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// console renders one conversation. Notices arrive from the socket reader
// and from timers, so every write goes through mu.
type console struct {
	out     io.Writer
	me      string
	peer    string
	current func() *chat.Session

	mu     sync.Mutex
	remote presence.RemoteState
}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *console) notice(n chat.Notice) {
	switch n.Kind {
	case chat.NoticeMessages:
		if n.Message == nil {
			c.timeline()
			return
		}
		m := *n.Message
		// own sends are printed when typed; only a failure is worth repeating
		if m.FromMe(c.me) && m.Status != domain.StatusFailed {
			return
		}
		c.println(renderMessage(m, c.me, c.peer))
	case chat.NoticePresence:
		c.mu.Lock()
		changed := c.remote != n.Remote
		c.remote = n.Remote
		c.mu.Unlock()
		if changed {
			c.println(renderPresence(n.Remote, c.peer))
		}
	case chat.NoticeCredit:
		c.println(renderNotice(n.Text))
	case chat.NoticeError:
		c.println(renderError(n.Text))
	}
}

func (c *console) timeline() {
	if c.current == nil {
		return
	}
	sess := c.current()
	if sess == nil {
		return
	}
	msgs := sess.Messages()

	c.mu.Lock()
	defer c.mu.Unlock()
	if sess.HasMore() {
		fmt.Fprintln(c.out, timeStyle.Render("… older messages not shown"))
	}
	if len(msgs) == 0 {
		fmt.Fprintln(c.out, statusStyle.Render("No messages yet. Say hello!"))
	}
	for _, m := range msgs {
		fmt.Fprintln(c.out, renderMessage(m, c.me, c.peer))
	}
}

// send reports the finished line as typing activity, then sends it. Input is
// line-buffered, so the counterpart sees typing start and stop around each send.
func (c *console) send(sess *chat.Session, line string) {
	sess.Keystroke(line)
	msg, err := sess.Send(line)
	switch {
	case errors.Is(err, chat.ErrEmptyBody):
	case errors.Is(err, chat.ErrDisconnected):
		c.println(renderError("Offline: message not sent."))
	case err != nil:
		c.println(renderError(err.Error()))
	default:
		c.println(renderMessage(msg, c.me, c.peer))
	}
}

// confirm asks on the console before a credit is spent.
func (c *console) confirm(lines <-chan string) eligibility.ConfirmFunc {
	return func(ctx context.Context, _ string) bool {
		c.println(renderNotice(fmt.Sprintf("Starting a conversation with %s uses one credit. Continue? [y/N]", c.peer)))
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			return answer == "y" || answer == "yes"
		}
	}
}

func (c *console) watchConnection(ctx context.Context, mgr *socket.Manager) {
	ch, stop := mgr.Watch()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-ch:
			c.println(renderConnection(up, time.Now()))
		}
	}
}
