package cmd

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

func TestAssetsDir(t *testing.T) {
	assert.Equal(t, "custom", assetsDir("custom", "assets/config.toml"))
	assert.Equal(t, "conf", assetsDir("", "conf/config.toml"))
	assert.Equal(t, "assets", assetsDir("", ""))
}

func TestDeviceTable(t *testing.T) {
	out := deviceTable([]metadata.DeviceInfo{
		{Name: "GPU A", Type: "Discrete", APIVersion: "1.3.250", DriverVersion: "535.0.0", Suitable: true},
		{Name: "llvmpipe", Type: "CPU", APIVersion: "1.3.0", DriverVersion: "0.0.1", Reason: "no sampler anisotropy"},
	})
	assert.Contains(t, out, "API version")
	assert.Contains(t, out, "GPU A")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "no: no sampler anisotropy")
}

func TestWatchSignalsStopsOnSignal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	var stops atomic.Int32
	exited := make(chan struct{})
	go func() {
		watchSignals(sigCh, make(chan struct{}), func() { stops.Add(1) })
		close(exited)
	}()

	sigCh <- syscall.SIGINT
	assert.Eventually(t, func() bool {
		select {
		case <-exited:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), stops.Load())
}

func TestWatchSignalsReturnsWhenDone(t *testing.T) {
	done := make(chan struct{})
	exited := make(chan struct{})
	stopped := false
	go func() {
		watchSignals(make(chan os.Signal), done, func() { stopped = true })
		close(exited)
	}()

	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("watcher still running after done was closed")
	}
	assert.False(t, stopped)
}
