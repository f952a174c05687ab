package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"

	"github.com/ShayCichocki/codegate/internal/exec"
	"github.com/ShayCichocki/codegate/internal/logging"
)

// heredocTerminator ends the payload here-document. The underscore is not
// in the base64 alphabet, so no encoded line can equal it.
const heredocTerminator = "CODEGATE_EOF"

const base64LineWidth = 76

// ErrTransferFailed is returned when the file could not be written or its
// digest did not match after the write.
var ErrTransferFailed = errors.New("artifact transfer failed")

// Transfer writes files into a sandbox through a CommandRunner.
type Transfer struct {
	runner exec.CommandRunner
	log    *logging.Logger
}

// NewTransfer creates a Transfer that issues commands through runner.
func NewTransfer(runner exec.CommandRunner, logger *logging.Logger) *Transfer {
	return &Transfer{runner: runner, log: logger.With("transfer")}
}

// Write stores content at filename on ep in a single remote invocation.
// The payload is decoded into a temporary file beside the target and then
// renamed over it, so later commands never observe a partial file.
func (t *Transfer) Write(ctx context.Context, ep exec.Endpoint, filename, content string) error {
	if filename == "" {
		return fmt.Errorf("%w: empty filename", ErrTransferFailed)
	}

	sum := sha256.Sum256([]byte(content))
	want := hex.EncodeToString(sum[:])

	cmd := writeCommand(filename, content)
	t.log.Debugf("writing %s (%d bytes, sha256 %s)", filename, len(content), want[:12])

	res, err := t.runner.Run(ctx, ep, cmd)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransferFailed, filename, err)
	}
	if res.ExitKnown && res.ExitCode != 0 {
		return fmt.Errorf("%w: %s: exit status %d: %s", ErrTransferFailed, filename, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	if strings.TrimSpace(res.Stderr) != "" {
		return fmt.Errorf("%w: %s: %s", ErrTransferFailed, filename, strings.TrimSpace(res.Stderr))
	}

	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 || fields[0] != want {
		return fmt.Errorf("%w: %s: digest mismatch (got %q)", ErrTransferFailed, filename, strings.TrimSpace(res.Stdout))
	}
	return nil
}

// writeCommand builds the shell script that decodes content into filename
// and prints the resulting digest.
func writeCommand(filename, content string) string {
	dir, base := path.Split(filename)
	tmp := path.Join(dir, "."+base+"."+uuid.NewString()+".tmp")

	qTmp := shellquote.Join(tmp)
	qFile := shellquote.Join(filename)

	var b strings.Builder
	fmt.Fprintf(&b, "base64 -d > %s <<'%s' || { rm -f %s; exit 1; }\n", qTmp, heredocTerminator, qTmp)
	b.WriteString(wrap(base64.StdEncoding.EncodeToString([]byte(content)), base64LineWidth))
	b.WriteString(heredocTerminator + "\n")
	fmt.Fprintf(&b, "mv -f %s %s || { rm -f %s; exit 1; }\n", qTmp, qFile, qTmp)
	fmt.Fprintf(&b, "sha256sum %s\n", qFile)
	return b.String()
}

// wrap splits s into newline-terminated lines of at most width bytes.
func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	if s != "" {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.String()
}
