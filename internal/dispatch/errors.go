package dispatch

import (
	"errors"

	"github.com/hibiken/asynq"
)

func errorsIsConflict(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}
