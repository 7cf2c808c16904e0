// ABOUTME: Interactive chat REPL built on readline
// ABOUTME: Slash commands reset the session, send images and show the session id

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/2389/merti-gateway/internal/webhook"
)

const replHelp = `Commands:
  /image <path> [text]   send an image, optionally with a question
  /reset                 start a new conversation
  /session               print the current session id
  /help                  show this help
  /quit                  leave`

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := currentSettings()
			if err != nil {
				return err
			}
			if s.ChatURL == "" {
				return errNoChatURL
			}
			return runChat(cmd.Context(), newClient(s), cmd.OutOrStdout())
		},
	}
}

// repl holds one conversation.
type repl struct {
	client  *webhook.Client
	session *webhook.Session
	out     io.Writer
}

func runChat(ctx context.Context, client *webhook.Client, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you › ",
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	r := &repl{client: client, session: client.NewSession(), out: out}
	fmt.Fprintln(out, headerStyle.Render("Merti assistant")+dimStyle.Render(" /help for commands"))

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF
			return nil
		}
		if r.handle(ctx, line) {
			return nil
		}
	}
}

// handle processes one input line and reports whether the REPL should exit.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line, nil)
		return false
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/session":
		if id, ok := r.session.CurrentID(); ok {
			fmt.Fprintln(r.out, dimStyle.Render("session "+id))
		} else {
			fmt.Fprintln(r.out, dimStyle.Render("no session yet"))
		}
	case "/reset":
		id := r.session.Reset(ctx)
		fmt.Fprintln(r.out, dimStyle.Render("new session "+id))
	case "/image":
		path, text, _ := strings.Cut(rest, " ")
		if path == "" {
			fmt.Fprintln(r.out, errorStyle.Render("usage: /image <path> [text]"))
			return false
		}
		img, err := readImageFile(path)
		if err != nil {
			fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
			return false
		}
		r.send(ctx, strings.TrimSpace(text), img)
	default:
		fmt.Fprintln(r.out, errorStyle.Render("unknown command "+name+", try /help"))
	}
	return false
}

func (r *repl) send(ctx context.Context, text string, img *webhook.Image) {
	p, err := webhook.NewPayload(text, img)
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
		return
	}
	resp, err := r.client.Send(ctx, r.session, p)
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
		return
	}
	printReply(r.out, resp)
}
