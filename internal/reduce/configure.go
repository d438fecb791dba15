package reduce

import (
	"fmt"

	"github.com/born-ml/gridstat/internal/parallel"
)

// ConfigurePool resolves a thread request into the process-wide pool.
// Invalid requests fail with ErrConfiguration.
func ConfigurePool(threads parallel.Threads) (*parallel.Pool, error) {
	pool, err := parallel.Configure(threads)
	if err != nil {
		return nil, &Error{Op: "configure", Err: fmt.Errorf("%w: %w", ErrConfiguration, err)}
	}
	return pool, nil
}
