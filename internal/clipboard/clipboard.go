// Package clipboard copies dashboard values (entity IDs, stream URLs,
// IP addresses) to the system clipboard. Native tools are tried first,
// then the OSC 52 escape sequence so copying works over SSH too.
package clipboard

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/CursedScorpio/fleetdeck/internal/platform"
)

// CopyResult describes how a copy succeeded.
type CopyResult struct {
	Method   string // pbcopy, wl-copy, xclip, xsel, clip.exe, or osc52
	ByteSize int
}

// Copy places text on the system clipboard. The native tool for the
// platform is tried first; when none is available the OSC 52 sequence
// is written to the terminal instead.
func Copy(text string) (*CopyResult, error) {
	if text == "" {
		return nil, fmt.Errorf("nothing to copy")
	}

	method, err := copyNative(text)
	if err == nil {
		return &CopyResult{Method: method, ByteSize: len(text)}, nil
	}

	if err := copyOSC52(text); err != nil {
		return nil, fmt.Errorf("clipboard unavailable (install pbcopy, xclip, xsel, or wl-copy): %w", err)
	}
	return &CopyResult{Method: "osc52", ByteSize: len(text)}, nil
}

func copyNative(text string) (string, error) {
	switch platform.Detect() {
	case platform.PlatformMacOS:
		return "pbcopy", runClipCmd("pbcopy", nil, text)

	case platform.PlatformWSL1, platform.PlatformWSL2:
		return "clip.exe", runClipCmd("clip.exe", nil, text)

	case platform.PlatformLinux:
		// Wayland before X11.
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			if path, err := exec.LookPath("wl-copy"); err == nil {
				return "wl-copy", runClipCmd(path, nil, text)
			}
		}
		if path, err := exec.LookPath("xclip"); err == nil {
			return "xclip", runClipCmd(path, []string{"-selection", "clipboard"}, text)
		}
		if path, err := exec.LookPath("xsel"); err == nil {
			return "xsel", runClipCmd(path, []string{"--clipboard", "--input"}, text)
		}
		return "", fmt.Errorf("no clipboard command found")

	default:
		return "", fmt.Errorf("unsupported platform: %s", platform.Detect())
	}
}

func runClipCmd(name string, args []string, text string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// copyOSC52 writes the OSC 52 sequence to /dev/tty, bypassing any
// stdout redirection. Inside tmux the sequence needs a DCS passthrough.
func copyOSC52(text string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	seq := osc52Sequence(encoded, os.Getenv("TMUX") != "")

	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open /dev/tty: %w", err)
	}
	defer tty.Close()

	_, err = tty.WriteString(seq)
	return err
}

func osc52Sequence(base64Content string, inTmux bool) string {
	osc := "\x1b]52;c;" + base64Content + "\x07"
	if inTmux {
		return "\x1bPtmux;\x1b" + osc + "\x1b\\"
	}
	return osc
}
