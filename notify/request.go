package notify

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks notices that were rejected before any send attempt.
var ErrInvalidRequest = errors.New("invalid notification request")

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
