// Package shell tells the user how to put the install directory on PATH.
//
// The installer never edits rc files. When the bin directory is missing
// from PATH it detects the user's shell and prints the line to add:
//
//	bash, zsh:   export PATH="/home/me/.autocommit/bin:$PATH"   (~/.bashrc, ~/.zshrc)
//	fish:        fish_add_path /home/me/.autocommit/bin          (~/.config/fish/config.fish)
//	powershell:  $env:Path = "C:\Users\me\.autocommit\bin;" + $env:Path
//
// # Shell Detection
//
// Shell detection tries two methods:
//  1. $SHELL environment variable (most reliable)
//  2. Parent process name, via gopsutil (fallback, and the only option on windows)
package shell
