package bot

import (
	"errors"
	"fmt"

	"github.com/iXty9/relaybot/internal/chat"
)

// Error categories reported by control-surface operations. None of them is
// fatal to the process.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrAdapter         = errors.New("adapter error")
)

// adapterErr classifies an adapter failure: unresolved ids become ErrNotFound,
// everything else ErrAdapter. The original message is preserved.
func adapterErr(op string, err error) error {
	if errors.Is(err, chat.ErrNotFound) {
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrAdapter, err)
}
