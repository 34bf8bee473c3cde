package logs

import (
	"errors"
	"fmt"

	"github.com/compozy/logscout/engine/core"
)

const (
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeLogGroupNotFound = "LOG_GROUP_NOT_FOUND"
	CodeStoreFailure     = "STORE_FAILURE"
)

// ErrLogGroupNotFound is wrapped by every unknown-group failure. Its text is
// part of the contract: the result analyzer keys not-found retries on it.
var ErrLogGroupNotFound = errors.New("log group not found")

func invalidArgument(err error, details map[string]any) *core.Error {
	return core.NewError(err, CodeInvalidArgument, details)
}

func groupNotFound(name string) *core.Error {
	return core.NewError(
		fmt.Errorf("%w: %s", ErrLogGroupNotFound, name),
		CodeLogGroupNotFound,
		map[string]any{"log_group": name},
	)
}

func storeFailure(op string, err error) *core.Error {
	return core.NewError(fmt.Errorf("%s: %w", op, err), CodeStoreFailure, nil)
}
