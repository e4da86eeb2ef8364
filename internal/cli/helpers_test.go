package cli

import (
	"bytes"
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterrupted(t *testing.T) {
	tests := []struct {
		name string
		sig  os.Signal
		code int
		out  string
	}{
		{"no signal", nil, 0, ""},
		{"ctrl+c", os.Interrupt, 130, "[CTRL+C]\n>>> Interrupted by interrupt.\n"},
		{"sigterm", syscall.SIGTERM, 143, ">>> Interrupted by terminated.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tt.code, Interrupted(&out, tt.sig))
			assert.Equal(t, tt.out, out.String())
		})
	}
}

func TestSignalContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx := NewSignalContext(parent)
	cancel()

	<-ctx.Done()
	assert.Nil(t, ctx.Signal())
}

func TestSignalContext_RecordsSignal(t *testing.T) {
	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	ctx.sigCh <- syscall.SIGTERM
	<-ctx.Done()
	assert.Eventually(t, func() bool { return ctx.Signal() == syscall.SIGTERM }, time.Second, 10*time.Millisecond)
}
