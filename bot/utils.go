package bot

import (
	"time"

	"github.com/pkg/errors"
)

var ErrNoAttempts = errors.New("no attempts made")

// RobustExecute runs f until it succeeds, at most n times, sleeping d between failures.
// It returns the error of the last attempt.
func RobustExecute(n int, d time.Duration, f func() error) error {
	err := ErrNoAttempts
	for attempt := 1; attempt <= n; attempt++ {
		if err = f(); err == nil {
			return nil
		}
		if attempt < n {
			time.Sleep(d)
		}
	}
	return err
}
