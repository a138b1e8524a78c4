package login

import (
	"fmt"
	"os/exec"
	"runtime"
)

// URLOpener hands a URL to the platform's external browser. Opening is fire
// and forget; the login flow resumes whenever the callback arrives, if ever.
type URLOpener interface {
	Open(url string) error
}

// ExecURLOpener shells out to the platform opener command.
type ExecURLOpener struct{}

var _ URLOpener = ExecURLOpener{}

func (ExecURLOpener) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("[ExecURLOpener Open] %s: %w", string(out), err)
	}
	return nil
}
