package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// prompter asks for missing input on the terminal.
type prompter struct {
	in *bufio.Reader
	fd int
	w  io.Writer
}

func newPrompter(in *os.File, w io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), fd: int(in.Fd()), w: w}
}

// Line prints prompt and reads one trimmed line. If EOF occurs after some
// input was read, the partial line is returned.
func (p *prompter) Line(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.w, prompt); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads without echo from a terminal, or as a plain line when
// input is piped.
func (p *prompter) Password(prompt string) (string, error) {
	if !isTerminal(p.fd) {
		return p.Line(prompt)
	}

	if _, err := fmt.Fprint(p.w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(p.fd)
	fmt.Fprintln(p.w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
