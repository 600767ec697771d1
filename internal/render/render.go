// Package render writes session results to a terminal or as JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/itsmostafa/gokernel/internal/expr"
	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/session"
)

var (
	// inStyle for In[n]:= prompts
	inStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	// outStyle for Out[n]= labels
	outStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	// dimStyle for diagnostics and metadata
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// failedStyle for $Failed and uncaught jumps
	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// interactiveStyle for results rendered interactively
	interactiveStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("81")).
				Padding(0, 1)

	// bannerStyle for the REPL banner
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("160")).
			Padding(0, 2)
)

// Prompt returns the input prompt for the given execution index. It is
// left unstyled since line editors measure prompts byte by byte.
func Prompt(line int) string {
	return fmt.Sprintf("In[%d]:= ", line)
}

// ContinuationPrompt pads a continuation line to the width of Prompt.
func ContinuationPrompt(line int) string {
	return strings.Repeat(" ", len(Prompt(line)))
}

// Banner renders the REPL banner.
func Banner(w io.Writer, version string) {
	fmt.Fprintln(w, bannerStyle.Render(" gokernel "+version+" "))
	fmt.Fprintln(w, dimStyle.Render("Blank line evaluates a pending block. :history lists inputs, :quit exits."))
	fmt.Fprintln(w)
}

// Pretty writes the diagnostics of a block followed by one Out[n]= line
// per result.
func Pretty(w io.Writer, res *session.Result) {
	if res.Diagnostics != "" {
		fmt.Fprint(w, dimStyle.Render(strings.TrimRight(res.Diagnostics, "\n"))+"\n")
	}
	for i, v := range res.Results {
		label := outStyle.Render(fmt.Sprintf("Out[%d]=", res.Positions[i]))
		text := value(v)
		if res.Interactive {
			text = interactiveStyle.Render(text)
		}
		fmt.Fprintf(w, "%s %s\n", label, text)
	}
	if len(res.Results) > 0 {
		fmt.Fprintln(w)
	}
}

func value(v any) string {
	text := expr.Format(v)
	if _, ok := v.(expr.HeldJump); ok || expr.IsFailed(v) {
		return failedStyle.Render(text)
	}
	return text
}

// Block is the JSON document written for one input block. Results are
// display text, since evaluated values need not be JSON-encodable.
type Block struct {
	Results     []string `json:"results"`
	Positions   []int    `json:"positions"`
	Interactive bool     `json:"interactive"`
	Diagnostics string   `json:"diagnostics"`
	Messages    []string `json:"messages"`
	Consumed    int      `json:"consumed"`
	Line        int      `json:"line"`
}

// NewBlock converts a session result into its JSON document.
func NewBlock(res *session.Result) Block {
	b := Block{
		Results:     make([]string, len(res.Results)),
		Positions:   res.Positions,
		Interactive: res.Interactive,
		Diagnostics: res.Diagnostics,
		Messages:    res.Messages,
		Consumed:    res.Consumed,
		Line:        res.Line,
	}
	for i, v := range res.Results {
		b.Results[i] = expr.Format(v)
	}
	if b.Positions == nil {
		b.Positions = []int{}
	}
	if b.Messages == nil {
		b.Messages = []string{}
	}
	return b
}

// JSON writes res as one indented JSON document.
func JSON(w io.Writer, res *session.Result) error {
	data, err := json.MarshalIndent(NewBlock(res), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// History writes history entries as In/Out pairs.
func History(w io.Writer, entries []history.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s %s\n", inStyle.Render(fmt.Sprintf("In[%d]:=", e.Index)), strings.TrimSpace(e.Input))
		if e.HasOutput {
			fmt.Fprintf(w, "%s %s\n", outStyle.Render(fmt.Sprintf("Out[%d]=", e.Index)), expr.Format(e.Output))
		}
	}
}

// Sessions writes stored session ids, one per line.
func Sessions(w io.Writer, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No sessions recorded."))
		return
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
}
