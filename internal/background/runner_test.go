package background_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"crowdmeter/internal/background"
)

func TestSpawnRunsTask(t *testing.T) {
	r := background.NewRunner(4, zerolog.Nop())
	var ran atomic.Bool
	r.Spawn("task", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Wait()
	assert.True(t, ran.Load())
}

func TestSpawnSwallowsErrors(t *testing.T) {
	r := background.NewRunner(4, zerolog.Nop())
	r.Spawn("failing", func(ctx context.Context) error {
		return errors.New("boom")
	})
	r.Wait() // must not panic or propagate
}

func TestSpawnRecoversPanic(t *testing.T) {
	r := background.NewRunner(4, zerolog.Nop())
	r.Spawn("panicking", func(ctx context.Context) error {
		panic("boom")
	})
	r.Wait()

	// runner still usable after a panic
	var ran atomic.Bool
	r.Spawn("after", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Wait()
	assert.True(t, ran.Load())
}

func TestSpawnDoesNotBlockCaller(t *testing.T) {
	r := background.NewRunner(1, zerolog.Nop())
	release := make(chan struct{})
	r.Spawn("hold", func(ctx context.Context) error {
		<-release
		return nil
	})
	// with the single slot taken, Spawn must still return immediately
	var ran atomic.Bool
	r.Spawn("queued", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	close(release)
	r.Wait()
	assert.True(t, ran.Load())
}
