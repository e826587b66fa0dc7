package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompter asks questions on a terminal
type Prompter struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

// NewPrompter reads answers from in and writes questions to out. With
// assumeYes every confirmation is accepted without reading input.
func NewPrompter(in io.Reader, out io.Writer, assumeYes bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

// Confirm asks a yes/no question. Anything but y or yes declines, as does
// a closed input stream.
func (p *Prompter) Confirm(question string) (bool, error) {
	if p.assumeYes {
		fmt.Fprintf(p.out, "%s [y/N] %s\n", question, Dim("y (assumed)"))
		return true, nil
	}

	fmt.Fprintf(p.out, "%s [y/N] ", question)
	answer, err := p.readLine()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading answer: %w", err)
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ReadLine prints prompt and returns the trimmed line entered. It returns
// io.EOF once the input is closed.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.readLine()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
	}
	return line, err
}

// ReadPoolArgs prompts for pool IDs or URLs separated by spaces or commas
func (p *Prompter) ReadPoolArgs(prompt string) ([]string, error) {
	line, err := p.ReadLine(prompt)
	if err != nil {
		return nil, err
	}
	return SplitPoolArgs(line), nil
}

// SplitPoolArgs splits a line of input into pool arguments
func SplitPoolArgs(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
