// ABOUTME: Terminal prompts: free-text questions, y/N confirmations and hidden passwords
// ABOUTME: Confirmer is the seam workflows use so tests can answer without a terminal

package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrCancelled is returned by workflows when the user refuses a confirmation.
var ErrCancelled = errors.New("cancelled by user")

// Confirmer asks the user to approve an action.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

var (
	// Always approves every action, e.g. for --yes flags.
	Always Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	// Never refuses every action.
	Never Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
)

// Terminal prompts on a line-oriented reader and writer.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	fd  int

	readPassword func(fd int) ([]byte, error) // mockable
}

// NewTerminal prompts on in and out. Passwords are hidden only when in is a TTY.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &Terminal{
		in:           bufio.NewReader(in),
		out:          out,
		fd:           fd,
		readPassword: term.ReadPassword,
	}
}

// Stdio prompts on the process's standard input and output.
func Stdio() *Terminal {
	return NewTerminal(os.Stdin, os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Line prints prefix and reads one trimmed line. It returns io.EOF when the
// input is exhausted.
func (t *Terminal) Line(prefix string) (string, error) {
	fmt.Fprint(t.out, prefix)
	return t.readLine()
}

// Ask prints question and returns the answer, or defaultVal on empty input or EOF.
func (t *Terminal) Ask(question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(t.out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(t.out, "%s: ", question)
	}

	input, err := t.readLine()
	if err != nil {
		fmt.Fprintln(t.out)
		return defaultVal
	}
	if input == "" {
		return defaultVal
	}
	return input
}

// Confirm asks a y/N question. Anything but an explicit yes refuses.
func (t *Terminal) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(t.out, "%s [y/N]: ", message)

	input, err := t.readLine()
	if err != nil {
		fmt.Fprintln(t.out)
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(input) {
	case "y", "yes", "是", "确定":
		return true, nil
	default:
		return false, nil
	}
}

// Password reads a secret without echo when attached to a terminal.
func (t *Terminal) Password(label string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", label)

	if t.fd >= 0 {
		pwd, err := t.readPassword(t.fd)
		fmt.Fprintln(t.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pwd), nil
	}

	pwd, err := t.readLine()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return pwd, nil
}
