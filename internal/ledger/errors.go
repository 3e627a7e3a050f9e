package ledger

import (
	"errors"
	"fmt"

	"kakeibo/internal/core"
)

// wrapStorage tags backend failures as ErrStorageUnavailable unless the
// backend already did.
func wrapStorage(op string, err error) error {
	if errors.Is(err, core.ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, core.ErrStorageUnavailable, err)
}
