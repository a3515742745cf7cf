package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/selkane/auxilium/internal/app/attachments"
	"github.com/selkane/auxilium/internal/app/conversation"
	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/events"
)

func init() {
	chatCmd.Flags().String("session", "", "resume this session id")
	chatCmd.Flags().String("language", "auto", "initial answer language")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Long: `Lines are sent as messages. Commands:
  /attach <path>...   add files to the next message
  /remove <index>     drop a pending attachment
  /module <id>        KNOWLEDGE, WRITING, TECH, STRATEGY or VISION
  /lang <code>        auto, darija, fr, en, ar, es...
  /play [id]          voice a message (default: last reply)
  /dismiss            clear the error banner
  /state              print the transcript
  /quit`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sessionID, _ := cmd.Flags().GetString("session")
	lang, _ := cmd.Flags().GetString("language")

	sess, err := openSession(ctx, cfg, domain.SessionID(sessionID), domain.ParseLanguage(lang))
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()

	evs, err := sess.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	go renderEvents(out, evs)

	r := &repl{sess: sess, out: out}
	fmt.Fprintf(out, "session %s\n", sess.svc.Store().SessionID())
	r.printMessages(sess.svc.Store().State().Messages)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := r.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

type repl struct {
	sess *session
	out  io.Writer
}

func (r *repl) handle(ctx context.Context, line string) bool {
	svc := r.sess.svc
	line = strings.TrimSpace(line)

	if !strings.HasPrefix(line, "/") {
		svc.SetDraft(line)
		res, err := svc.Submit(ctx)
		var reqErr *conversation.RequestError
		switch {
		case errors.Is(err, conversation.ErrEmptyInput), errors.Is(err, conversation.ErrRequestInFlight):
			fmt.Fprintln(r.out, err)
		case errors.As(err, &reqErr):
			fmt.Fprintf(r.out, "!! %s (/dismiss to clear)\n", reqErr.Message)
		case err != nil:
			fmt.Fprintf(r.out, "!! %v\n", err)
		default:
			r.printMessages([]*domain.Message{res.ModelMessage})
		}
		return false
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/quit", "/exit":
		return true
	case "/attach":
		if rest == "" {
			fmt.Fprintln(r.out, "usage: /attach <path>...")
			return false
		}
		sel := attachments.LocalSelection(strings.Fields(rest)...)
		if err := r.sess.ingestor.Ingest(ctx, sel); err != nil {
			fmt.Fprintf(r.out, "!! %v\n", err)
		}
		r.printPending()
	case "/remove":
		i, err := strconv.Atoi(rest)
		if err == nil {
			err = svc.Pending().Remove(i)
		}
		if err != nil {
			fmt.Fprintf(r.out, "!! %v\n", err)
		}
		r.printPending()
	case "/module":
		id, err := domain.ParseModuleID(rest)
		if err == nil {
			err = svc.SelectModule(id)
		}
		if err != nil {
			fmt.Fprintf(r.out, "!! %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "module %s (%s)\n", id, id.Module().Name)
	case "/lang":
		svc.SetLanguage(domain.ParseLanguage(rest))
		fmt.Fprintf(r.out, "language %s\n", svc.Language())
		if msgs := svc.Store().State().Messages; len(msgs) > 0 {
			r.printMessages(msgs[:1])
		}
	case "/play":
		r.play(ctx, domain.MessageID(rest))
	case "/dismiss":
		svc.DismissError()
	case "/state":
		st := svc.Store().State()
		r.printMessages(st.Messages)
		if st.Error != nil {
			fmt.Fprintf(r.out, "!! %s\n", *st.Error)
		}
		stats := svc.Stats()
		fmt.Fprintf(r.out, "module=%s language=%s requests=%d tokens=%d latency=%s\n",
			svc.Module(), svc.Language(), stats.Requests, stats.Tokens, stats.Latency)
	default:
		fmt.Fprintf(r.out, "unknown command %s\n", name)
	}
	return false
}

func (r *repl) play(ctx context.Context, id domain.MessageID) {
	msgs := r.sess.svc.Store().State().Messages
	var target *domain.Message
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if (id == "" && m.Role == domain.RoleModel) || m.ID == id {
			target = m
			break
		}
	}
	if target == nil {
		fmt.Fprintln(r.out, "!! no such message")
		return
	}
	if err := r.sess.player.Play(ctx, target.Content, target.ID); err != nil {
		fmt.Fprintf(r.out, "!! %v\n", err)
	}
}

func (r *repl) printMessages(msgs []*domain.Message) {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		who := "you"
		if m.Role == domain.RoleModel {
			who = "auxilium"
		}
		fmt.Fprintf(r.out, "[%s %s] %s\n", who, m.ID, m.Content)
		for _, a := range m.Attachments {
			fmt.Fprintf(r.out, "    + %s (%s)\n", a.Name, a.MIMEType)
		}
	}
}

func (r *repl) printPending() {
	for i, a := range r.sess.svc.Pending().List() {
		fmt.Fprintf(r.out, "  %d: %s (%s)\n", i, a.Name, a.MIMEType)
	}
}

// renderEvents prints the events the REPL does not already echo.
func renderEvents(w io.Writer, evs <-chan events.Event) {
	for ev := range evs {
		switch ev.Type {
		case events.TypePlaybackChanged:
			fmt.Fprintf(w, "\n~ voice %s: %s\n", ev.MessageID, ev.Playback)
		case events.TypeRequestStarted:
			fmt.Fprintln(w, "... thinking")
		}
	}
}
