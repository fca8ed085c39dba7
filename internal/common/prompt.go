// Package common — prompt.go implements the interactive confirmation used
// by the --confirm-* flags: show a unified diff of the pending page edit,
// then ask a yes/no question on the terminal.
package common

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	log "github.com/sirupsen/logrus"
)

// ConsolePrompter reads answers from in and writes prompts/diffs to out.
// Zero value is not usable; use NewConsolePrompter.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

// ShowDiff prints a unified diff between the current and the pending page
// text so the operator can review the edit before confirming it.
func (p *ConsolePrompter) ShowDiff(before, after string) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "current",
		ToFile:   "pending",
		Context:  3,
	})
	if err != nil {
		log.WithError(err).Error("Failed to render diff")
		return
	}
	fmt.Fprint(p.out, diff)
}

// Confirm asks question and returns true only for "y" or "yes"
// (case-insensitive). Read errors count as a declined write.
func (p *ConsolePrompter) Confirm(question string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
