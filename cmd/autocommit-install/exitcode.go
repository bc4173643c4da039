package main

import (
	"errors"

	"github.com/urstruelysv/autocommit-installer/internal/binary"
	"github.com/urstruelysv/autocommit-installer/internal/platform"
	"github.com/urstruelysv/autocommit-installer/internal/transaction"
)

// Exit codes
const (
	exitOK          = 0
	exitGeneric     = 1
	exitNetwork     = 2
	exitVerify      = 3
	exitFileSystem  = 4
	exitUnsupported = 5
	exitLocked      = 6
)

// exitCode maps an install error to the process exit code. Verification
// is checked first since a verifier failure can wrap a network error.
func exitCode(err error) int {
	var (
		verifyErr  *binary.VerificationError
		httpErr    *binary.HTTPError
		netErr     *binary.NetworkError
		fsErr      *binary.FileSystemError
		extractErr *binary.ExtractionError
	)

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &verifyErr):
		return exitVerify
	case errors.Is(err, transaction.ErrLockExists):
		return exitLocked
	case errors.Is(err, platform.ErrUnsupportedPlatform),
		errors.Is(err, platform.ErrUnsupportedArchitecture):
		return exitUnsupported
	case errors.As(err, &httpErr),
		errors.As(err, &netErr),
		errors.Is(err, binary.ErrTooManyRedirects):
		return exitNetwork
	case errors.As(err, &fsErr),
		errors.As(err, &extractErr),
		errors.Is(err, binary.ErrUnsupportedArchiveType):
		return exitFileSystem
	default:
		return exitGeneric
	}
}
