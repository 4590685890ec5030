package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/swarmtree/internal/conflict"
	"github.com/Iron-Ham/swarmtree/internal/errors"
	"github.com/Iron-Ham/swarmtree/internal/worktree"
)

// Output formats accepted by --output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")
	primaryColor = lipgloss.Color("#A78BFA")
)

// styles used by text output. Every style is plain when the destination is
// not a terminal.
type styles struct {
	title   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{title: plain, success: plain, warning: plain, err: plain, muted: plain}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		success: lipgloss.NewStyle().Foreground(successColor),
		warning: lipgloss.NewStyle().Foreground(warningColor),
		err:     lipgloss.NewStyle().Bold(true).Foreground(errorColor),
		muted:   lipgloss.NewStyle().Foreground(mutedColor),
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printer renders command results in the selected format.
type printer struct {
	w      io.Writer
	format string
	s      styles
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, errors.NewValidationError("unknown output format, expected text, json or yaml").
			WithField("output").
			WithValue(format)
	}
	return &printer{w: w, format: format, s: newStyles(isTerminal(w))}, nil
}

// structured writes v as JSON or YAML. It reports false for text output so
// the caller can render its own view.
func (p *printer) structured(v any) (bool, error) {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func (p *printer) worktrees(wts []worktree.TeamWorktree) error {
	if done, err := p.structured(wts); done {
		return err
	}
	if len(wts) == 0 {
		_, err := fmt.Fprintln(p.w, p.s.muted.Render("No team worktrees."))
		return err
	}

	width := len("TEAM")
	for _, wt := range wts {
		width = max(width, len(wt.TeamID))
	}
	header := fmt.Sprintf("%-*s  %s", width, "TEAM", "BRANCH")
	if _, err := fmt.Fprintln(p.w, p.s.title.Render(header)); err != nil {
		return err
	}
	for _, wt := range wts {
		line := fmt.Sprintf("%-*s  %s  %s", width, wt.TeamID, wt.BranchName, p.s.muted.Render(wt.WorktreePath))
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) created(wt *worktree.TeamWorktree) error {
	if done, err := p.structured(wt); done {
		return err
	}
	_, err := fmt.Fprintf(p.w, "%s %s on %s\n  %s\n",
		p.s.success.Render("created"), wt.TeamID, wt.BranchName, p.s.muted.Render(wt.WorktreePath))
	return err
}

func (p *printer) merge(source, target string, res *worktree.MergeResult) error {
	if done, err := p.structured(res); done {
		return err
	}
	var err error
	switch res.Kind {
	case worktree.MergeUpToDate:
		_, err = fmt.Fprintf(p.w, "%s %s already contains %s\n", p.s.muted.Render("up to date"), target, source)
	case worktree.MergeFastForward:
		_, err = fmt.Fprintf(p.w, "%s %s to %s\n", p.s.success.Render("fast-forward"), target, shortHash(res.CommitHash))
	case worktree.MergeCommit:
		_, err = fmt.Fprintf(p.w, "%s %s into %s at %s\n", p.s.success.Render("merged"), source, target, shortHash(res.CommitHash))
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%s merging %s into %s:\n", p.s.warning.Render("conflicts"), source, target)
		for _, path := range res.Conflicts {
			fmt.Fprintf(&b, "  %s\n", path)
		}
		_, err = io.WriteString(p.w, b.String())
	}
	return err
}

func (p *printer) overlaps(overlaps []conflict.Overlap) error {
	if done, err := p.structured(overlaps); done {
		return err
	}
	for _, o := range overlaps {
		line := fmt.Sprintf("%s %s %s", p.s.warning.Render("overlap"), o.Path, p.s.muted.Render(strings.Join(o.Teams, ", ")))
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}
	return nil
}

// message prints a one-line status in text mode, or v in structured modes.
func (p *printer) message(v any, format string, args ...any) error {
	if done, err := p.structured(v); done {
		return err
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
