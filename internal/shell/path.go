package shell

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// OnPath reports whether dir is one of the entries of pathList, a
// PATH-style list for the host OS.
func OnPath(dir, pathList string) bool {
	want := filepath.Clean(dir)
	for _, entry := range filepath.SplitList(pathList) {
		if entry == "" {
			continue
		}
		got := filepath.Clean(entry)
		if got == want || (runtime.GOOS == "windows" && strings.EqualFold(got, want)) {
			return true
		}
	}
	return false
}

// PathLine returns the line that prepends dir to PATH in the given shell.
func PathLine(shell ShellType, dir string) (string, error) {
	switch shell {
	case ShellBash, ShellZsh:
		return fmt.Sprintf(`export PATH="%s:$PATH"`, dir), nil
	case ShellFish:
		return fmt.Sprintf("fish_add_path %s", quoteFish(dir)), nil
	case ShellPowerShell:
		return fmt.Sprintf(`$env:Path = "%s;" + $env:Path`, dir), nil
	default:
		return "", &UnsupportedShellError{Shell: shell.String()}
	}
}

func quoteFish(dir string) string {
	if !strings.ContainsAny(dir, " '\"$") {
		return dir
	}
	return "'" + strings.ReplaceAll(dir, "'", `\'`) + "'"
}
