package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	methodEnv    = "$SHELL environment variable"
	methodParent = "parent process"
	methodNone   = "detection failed"
)

// Detector finds the user's shell. The zero value is not usable; call
// NewDetector.
type Detector struct {
	getenv     func(string) string
	parentName func(ctx context.Context) (string, error)
}

// NewDetector returns a detector reading the real environment and process
// table.
func NewDetector() *Detector {
	return &Detector{
		getenv:     os.Getenv,
		parentName: parentProcessName,
	}
}

// DetectShell detects the user's shell using multiple methods. An
// undetectable shell is reported as ShellUnknown, not as an error.
func (d *Detector) DetectShell(ctx context.Context) *DetectionResult {
	if shellPath := d.getenv("SHELL"); shellPath != "" {
		if shellType := parseShellFromPath(shellPath); shellType.IsValid() {
			return &DetectionResult{Shell: shellType, Method: methodEnv, ShellPath: shellPath}
		}
	}

	if name, err := d.parentName(ctx); err == nil {
		if shellType := parseShellFromPath(name); shellType.IsValid() {
			return &DetectionResult{Shell: shellType, Method: methodParent, ShellPath: name}
		}
	}

	return &DetectionResult{Shell: ShellUnknown, Method: methodNone}
}

// parseShellFromPath extracts the shell type from a shell binary path
// Examples:
//   - /bin/bash -> bash
//   - /usr/local/bin/fish -> fish
//   - C:\Program Files\PowerShell\7\pwsh.exe -> powershell
func parseShellFromPath(shellPath string) ShellType {
	// filepath.Base only splits on the host separator.
	baseName := shellPath
	if i := strings.LastIndexAny(baseName, `/\`); i >= 0 {
		baseName = baseName[i+1:]
	}
	baseName = strings.TrimSuffix(strings.ToLower(baseName), ".exe")
	baseName = strings.TrimPrefix(baseName, "-") // login shells

	switch baseName {
	case "bash":
		return ShellBash
	case "zsh":
		return ShellZsh
	case "fish":
		return ShellFish
	case "pwsh", "powershell":
		return ShellPowerShell
	default:
		return ShellUnknown
	}
}

func parentProcessName(ctx context.Context) (string, error) {
	parent, err := process.NewProcessWithContext(ctx, int32(os.Getppid()))
	if err != nil {
		return "", err
	}
	return parent.NameWithContext(ctx)
}

// RCFilePath returns the file the PATH line belongs in, relative to home.
// PowerShell profiles live in $PROFILE, which has no fixed location.
func RCFilePath(shell ShellType, home string) (string, error) {
	switch shell {
	case ShellBash:
		return filepath.Join(home, ".bashrc"), nil
	case ShellZsh:
		return filepath.Join(home, ".zshrc"), nil
	case ShellFish:
		return filepath.Join(home, ".config", "fish", "config.fish"), nil
	case ShellPowerShell:
		return "$PROFILE", nil
	default:
		return "", &UnsupportedShellError{Shell: shell.String()}
	}
}
