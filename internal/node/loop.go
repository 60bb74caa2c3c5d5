package node

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
)

// ErrLoopStuck is returned by stopLoop when the acquisition goroutine does
// not exit within the grace period. The session is considered unsafe to
// reuse after this.
var ErrLoopStuck = errors.New("node: acquisition loop did not stop in time")

// acqLoop is the handle for one run of the acquisition goroutine. A fresh
// handle is made per activation; handles are never reused.
type acqLoop struct {
	stop chan struct{}
	done chan struct{}

	// wait holds the bound of the frame wait currently in flight, in
	// nanoseconds. joinLoop reads it so that shrinking the timeout
	// parameter mid-wait cannot make the join grace shorter than the
	// wait the goroutine is legitimately blocked in.
	wait atomic.Int64
}

// startLoop spawns the acquisition goroutine and returns its handle.
func (n *Node) startLoop() *acqLoop {
	l := &acqLoop{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go n.runLoop(l)
	return l
}

// stopLoop signals the loop and waits up to grace for it to exit.
func (l *acqLoop) stopLoop(grace time.Duration) error {
	close(l.stop)
	select {
	case <-l.done:
		return nil
	case <-time.After(grace):
		return ErrLoopStuck
	}
}

// runLoop is the acquisition goroutine: wait for a frame, publish it,
// repeat until stopped. Frame timeouts are expected during device
// reparameterization and only logged; anything else is a hard failure
// that exits the loop and raises a node error.
func (n *Node) runLoop(l *acqLoop) {
	defer close(l.done)

	var (
		lastFrame    = time.Now()
		latencyAlert bool
	)

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		timeout, latencyThresh := n.loopBounds()
		l.wait.Store(int64(timeout))

		frame, err := n.fetchFrame(timeout)
		switch {
		case err == nil:

		case errors.Is(err, camera.ErrFrameTimeout):
			n.log.Debug("frame wait timed out", "timeout", timeout)
			n.recordTimeout()
			if gap := time.Since(lastFrame); gap > latencyThresh && !latencyAlert {
				n.log.Warn("no frames from camera",
					"last_frame_ago", gap.Round(time.Second),
					"threshold", latencyThresh)
				latencyAlert = true
			}
			continue

		case errors.Is(err, camera.ErrSessionClosed):
			// Session torn down underneath the loop during shutdown.
			return

		default:
			n.log.Error("acquisition failed", "error", err)
			n.raiseLoopError(err)
			return
		}

		interval := time.Since(lastFrame)
		lastFrame = time.Now()

		// Frames that keep arriving but slower than the threshold are a
		// degradation too, not just outright stalls. The alert latches
		// until an interval lands back under the threshold.
		if interval > latencyThresh {
			if !latencyAlert {
				n.log.Warn("frame interval above latency threshold",
					"interval", interval.Round(time.Millisecond),
					"threshold", latencyThresh)
				latencyAlert = true
			}
		} else {
			latencyAlert = false
		}

		opticalFrame, cameraFrame := n.frameIDs()
		n.pub.PublishFrame(frame, opticalFrame, cameraFrame)
		n.recordFrame(interval, frameBufferCount(frame))
	}
}

// fetchFrame waits for one frame while holding the session lock. The lock
// covers only this single device operation.
func (n *Node) fetchFrame(timeout time.Duration) (*camera.Frame, error) {
	n.mu.Lock()
	session := n.session
	n.mu.Unlock()

	if session == nil {
		return nil, camera.ErrSessionClosed
	}

	n.sessionMu.Lock()
	defer n.sessionMu.Unlock()
	return session.WaitForFrame(timeout)
}

// loopBounds snapshots the hot loop parameters under the node lock.
func (n *Node) loopBounds() (timeout, latencyThresh time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params.FrameTimeout(),
		time.Duration(n.params.FrameLatencyThresh * float64(time.Second))
}

// frameIDs snapshots the frame id parameters under the node lock.
func (n *Node) frameIDs() (optical, mount string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params.OpticalFrame, n.params.CameraFrame
}

// raiseLoopError hands a hard loop failure to the host driver without
// blocking the exiting goroutine.
func (n *Node) raiseLoopError(err error) {
	select {
	case n.errCh <- err:
	default:
	}
}

func frameBufferCount(f *camera.Frame) int {
	count := len(f.Images)
	if f.Cloud != nil {
		count++
	}
	if f.Extrinsics != nil {
		count++
	}
	return count
}
