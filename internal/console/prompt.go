package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/SimplyPrint/card-uid/internal/core"
	"github.com/SimplyPrint/card-uid/internal/logging"
	"golang.org/x/term"
)

var (
	// ErrNoReaders is returned when there is nothing to select from.
	ErrNoReaders = errors.New("no readers found")
	// ErrInvalidSelection is returned for input that isn't a listed reader index.
	ErrInvalidSelection = errors.New("invalid selection")
)

// rawTerminal remembers the state to restore while stdin is in raw mode.
var rawTerminal struct {
	mu    sync.Mutex
	fd    int
	state *term.State
}

// SelectReader lists readers on out and reads a 1-based index from in.
// When in is a terminal the index is read with line editing; Ctrl-C or
// Ctrl-D at the prompt count as an invalid selection.
func SelectReader(in io.Reader, out io.Writer, readers []core.Reader) (core.Reader, error) {
	if len(readers) == 0 {
		return core.Reader{}, ErrNoReaders
	}

	fmt.Fprintln(out, "Available readers:")
	for _, r := range readers {
		fmt.Fprintf(out, "%d: %s\n", r.Index, r.Name)
	}
	prompt := fmt.Sprintf("Select a reader (1-%d): ", len(readers))

	token, err := readSelection(in, out, prompt)
	if err != nil {
		return core.Reader{}, fmt.Errorf("%w: %w", ErrInvalidSelection, err)
	}

	n, err := strconv.Atoi(token)
	if err != nil {
		return core.Reader{}, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, token)
	}
	if n < 1 || n > len(readers) {
		return core.Reader{}, fmt.Errorf("%w: %d is out of range", ErrInvalidSelection, n)
	}

	selected := readers[n-1]
	logging.Info(logging.CatConsole, "Reader selected", map[string]any{
		"index":  selected.Index,
		"reader": selected.Name,
	})
	return selected, nil
}

func readSelection(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		token, err := readTerminalToken(f, out, prompt)
		if !errors.Is(err, errNoRawMode) {
			return token, err
		}
	}

	logging.Debug(logging.CatConsole, "Reading reader selection from non-interactive input", nil)
	fmt.Fprint(out, prompt)
	return readToken(in)
}

var errNoRawMode = errors.New("terminal does not support raw mode")

// readTerminalToken puts the terminal in raw mode and reads lines until one
// contains a word.
func readTerminalToken(f *os.File, out io.Writer, prompt string) (string, error) {
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		logging.Debug(logging.CatConsole, "Failed to enter raw mode", map[string]any{
			"error": err.Error(),
		})
		return "", errNoRawMode
	}
	rawTerminal.mu.Lock()
	rawTerminal.fd, rawTerminal.state = fd, state
	rawTerminal.mu.Unlock()
	defer RestoreTerminal()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{f, out}, prompt)
	for {
		line, err := t.ReadLine()
		if err != nil {
			return "", err
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields[0], nil
		}
	}
}

// RestoreTerminal leaves raw mode if the prompt put stdin into it.
func RestoreTerminal() {
	rawTerminal.mu.Lock()
	defer rawTerminal.mu.Unlock()
	if rawTerminal.state == nil {
		return
	}
	_ = term.Restore(rawTerminal.fd, rawTerminal.state)
	rawTerminal.state = nil
}

// readToken returns the next whitespace-separated word, skipping blank lines.
func readToken(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
