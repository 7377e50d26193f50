package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"wellness-chat/internal/core"
	"wellness-chat/pkg"
)

var (
	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// repl reads patient input line by line and drives a started controller.
type repl struct {
	ctrl *core.Controller
	in   *bufio.Scanner
	out  io.Writer
}

func newREPL(ctrl *core.Controller, in io.Reader, out io.Writer) *repl {
	return &repl{ctrl: ctrl, in: bufio.NewScanner(in), out: out}
}

// Run prints the transcript so far and then serves turns until /quit,
// /end or end of input.
func (r *repl) Run(ctx context.Context) error {
	for _, m := range r.ctrl.Transcript() {
		r.printMessage(m)
	}
	if r.ctrl.Detached() {
		printNotice(r.out, false, "Your earlier conversation could not be loaded. This chat stays on this device until /retry succeeds.")
	} else if n := len(r.ctrl.Unsynced()); n > 0 {
		printNotice(r.out, false, fmt.Sprintf("%d message(s) are not saved on the server yet. Type /retry to try again.", n))
	}

	for {
		suggestions := r.ctrl.SuggestedQueries()
		r.printSuggestions(suggestions)
		fmt.Fprint(r.out, userStyle.Render("you> "))
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())

		switch line {
		case "/quit":
			return nil
		case "/end":
			res, err := r.ctrl.Terminate(ctx)
			if res != nil {
				printNotice(r.out, res.Purged, res.Notice)
			}
			return err
		case "/retry":
			r.retry(ctx)
			continue
		}
		if q, ok := pickSuggestion(line, suggestions); ok {
			line = q
		}

		res, err := r.ctrl.Submit(ctx, line)
		switch {
		case errors.Is(err, core.ErrEmptyInput):
			continue
		case errors.Is(err, core.ErrBusy):
			printNotice(r.out, false, "Still waiting for the previous answer.")
			continue
		case err != nil:
			return err
		}
		r.printMessage(res.Reply)
		if res.Notice != "" {
			printNotice(r.out, false, res.Notice)
		}
	}
}

func (r *repl) retry(ctx context.Context) {
	n, err := r.ctrl.Resync(ctx)
	switch {
	case errors.Is(err, core.ErrRemoteHistory):
		printNotice(r.out, false, "The server holds an earlier conversation for this session. This chat was not saved over it.")
	case err != nil:
		printNotice(r.out, false, "Could not reach the server. Your messages are still kept here.")
	case n == 0:
		printNotice(r.out, true, "Everything is already saved.")
	default:
		printNotice(r.out, true, fmt.Sprintf("Saved %d message(s).", n))
	}
}

func (r *repl) printMessage(m pkg.Message) {
	label := userStyle.Render("you:")
	if m.Role == pkg.RoleAssistant {
		label = assistantStyle.Render("assistant:")
	}
	fmt.Fprintf(r.out, "%s %s\n", label, m.Content)
}

func (r *repl) printSuggestions(suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(r.out, hintStyle.Render("Not sure where to start? Type a number:"))
	for i, q := range suggestions {
		fmt.Fprintln(r.out, hintStyle.Render(fmt.Sprintf("  %d. %s", i+1, q)))
	}
}

// pickSuggestion maps "2" to the second suggestion.
func pickSuggestion(line string, suggestions []string) (string, bool) {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(suggestions) {
		return "", false
	}
	return suggestions[n-1], true
}

func printNotice(out io.Writer, ok bool, notice string) {
	style := warningStyle
	if ok {
		style = successStyle
	}
	fmt.Fprintln(out, style.Render(notice))
}
