package admin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// readSecret prompts on w and reads one line without echo when stdin is a
// terminal. Piped input is read as a plain line so scripts can feed it.
func readSecret(in *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	fd := int(os.Stdin.Fd())
	if isTerminal(fd) {
		pw, err := readPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readNewPassword asks twice and fails unless both answers agree.
func readNewPassword(in *bufio.Reader, w io.Writer) (string, error) {
	pw, err := readSecret(in, w, "New password: ")
	if err != nil {
		return "", err
	}
	again, err := readSecret(in, w, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", common.Validationf("passwords do not match")
	}
	return pw, nil
}
