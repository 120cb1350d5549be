package cli

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalContext_FirstSignalCancels(t *testing.T) {
	forced := make(chan os.Signal, 1)
	sc := NewSignalContext(context.Background(), WithForceHandler(func(sig os.Signal) { forced <- sig }))
	defer sc.Stop()

	assert.Nil(t, sc.Signal())
	sc.sigCh <- os.Interrupt

	select {
	case <-sc.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
	assert.Equal(t, os.Interrupt, sc.Signal())
	assert.Empty(t, forced, "the first signal is not forced")

	sc.sigCh <- syscall.SIGTERM
	select {
	case sig := <-forced:
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(time.Second):
		t.Fatal("second signal did not reach the force handler")
	}
	assert.Equal(t, os.Interrupt, sc.Signal(), "the reported signal stays the first one")
}

func TestSignalContext_Stop(t *testing.T) {
	sc := NewSignalContext(context.Background())
	sc.Stop()
	sc.Stop()

	require.ErrorIs(t, sc.Err(), context.Canceled)
	assert.Nil(t, sc.Signal(), "stopping is not a signal")
}

func TestSignalContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sc := NewSignalContext(parent)
	defer sc.Stop()

	cancel()
	<-sc.Done()
	assert.Nil(t, sc.Signal())
}
