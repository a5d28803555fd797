package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/term"
)

// PromptPassword reads a password from in without echoing it. in must be a
// terminal; scripted runs should set TIGERLOAD_DATABASE_PASSWORD instead.
func PromptPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", eris.New("config: database password required but stdin is not a terminal (set TIGERLOAD_DATABASE_PASSWORD)")
	}

	_, _ = fmt.Fprint(out, prompt)
	b, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", eris.Wrap(err, "config: read password")
	}

	pw := strings.TrimRight(string(b), "\r\n")
	if pw == "" {
		return "", eris.New("config: empty password")
	}
	return pw, nil
}
