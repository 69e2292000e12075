package media

import (
	"fmt"
	"sync"

	"mediabridge/logger"
)

// tasks runs detached background work whose outcome is only logged, and lets
// shutdown and tests wait for it.
type tasks struct {
	wg sync.WaitGroup
}

func (t *tasks) Go(name string, fn func() error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("background task panicked",
					logger.String("task", name),
					logger.String("panic", fmt.Sprint(r)))
			}
		}()
		if err := fn(); err != nil {
			logger.Warn("background task failed",
				logger.String("task", name), logger.ErrorField(err))
		}
	}()
}

func (t *tasks) Wait() {
	t.wg.Wait()
}
