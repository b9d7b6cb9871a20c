// Package queue provides the per-session playback queue. It holds resolved
// [audio.Source] values in FIFO order and streams the head of the queue, frame
// by frame, into a voice connection's output channel. When a track finishes the
// queue advances on its own; callers control it with Skip, Pause, Resume and
// Stop.
package queue

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/songbot/pkg/audio"
)

// Option configures a [TrackQueue] during construction.
type Option func(*TrackQueue)

// WithErrorHandler registers fn to be called from the dispatch goroutine
// whenever a track fails to open or fails mid-stream. The failed track is
// dropped and the queue advances.
func WithErrorHandler(fn func(track audio.Track, err error)) Option {
	return func(q *TrackQueue) {
		q.onError = fn
	}
}

// WithTrackEndHandler registers fn to be called after each track leaves the
// head of the queue, whether it finished, was skipped or failed.
func WithTrackEndHandler(fn func(track audio.Track)) Option {
	return func(q *TrackQueue) {
		q.onTrackEnd = fn
	}
}

// entry wraps a source with a unique identity so the dispatch goroutine can
// tell whether the head it started playing is still the head afterwards.
type entry struct {
	source audio.Source
	seq    uint64
}

// TrackQueue is a FIFO playback queue. The head item is the one currently
// playing (or about to play). Skip always removes exactly one item from the
// head regardless of playback progress.
//
// All exported methods are safe for concurrent use.
type TrackQueue struct {
	out        chan<- audio.AudioFrame
	onError    func(audio.Track, error)
	onTrackEnd func(audio.Track)

	mu            sync.Mutex
	items         []*entry
	seq           uint64
	playing       *entry        // head entry the dispatcher is streaming, or nil
	cancelPlaying chan struct{} // closed to abort the current track
	paused        bool
	resumed       chan struct{} // closed by Resume; replaced by Pause

	notify chan struct{} // signalled when a new item is enqueued
	done   chan struct{} // closed by Close to stop the dispatch goroutine
	closed bool
	wg     sync.WaitGroup
}

// New creates a [TrackQueue] that writes frames to out and starts its
// dispatch goroutine. Call [TrackQueue.Close] to stop it.
func New(out chan<- audio.AudioFrame, opts ...Option) *TrackQueue {
	q := &TrackQueue{
		out:     out,
		resumed: closedChan(),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.wg.Add(1)
	go q.dispatch()
	return q
}

// Enqueue appends src to the tail of the queue and returns the new length.
// Enqueue never reorders or deduplicates. It is a no-op after Close.
func (q *TrackQueue) Enqueue(src audio.Source) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}

	q.seq++
	q.items = append(q.items, &entry{source: src, seq: q.seq})

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return len(q.items)
}

// Skip removes the head item, aborting its playback if it is streaming.
// It reports whether an item was removed.
func (q *TrackQueue) Skip() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return false
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if q.playing == head {
		q.interruptLocked()
	}
	return true
}

// Pause suspends playback of the head item. The queue contents are unchanged.
func (q *TrackQueue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.paused {
		return
	}
	q.paused = true
	q.resumed = make(chan struct{})
}

// Resume continues playback after [TrackQueue.Pause].
func (q *TrackQueue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.paused {
		return
	}
	q.paused = false
	close(q.resumed)
}

// Paused reports whether playback is suspended.
func (q *TrackQueue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Stop aborts the current track and drops every queued item.
func (q *TrackQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopLocked()
}

// Tracks returns the metadata of every queued item in queue order, head first.
func (q *TrackQueue) Tracks() []audio.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	tracks := make([]audio.Track, len(q.items))
	for i, e := range q.items {
		tracks[i] = e.source.Track()
	}
	return tracks
}

// Len returns the number of queued items including the head.
func (q *TrackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops playback, drops all items and waits for the dispatch goroutine
// to exit. No frame is written to the output channel after Close returns.
// Close is idempotent.
func (q *TrackQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.stopLocked()
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// stopLocked must be called with q.mu held.
func (q *TrackQueue) stopLocked() {
	clear(q.items)
	q.items = nil
	q.interruptLocked()
}

// interruptLocked aborts the streaming track. Must be called with q.mu held.
func (q *TrackQueue) interruptLocked() {
	if q.cancelPlaying != nil {
		close(q.cancelPlaying)
		q.cancelPlaying = nil
	}
	q.playing = nil
}

// dispatch streams head items until [TrackQueue.Close] is called.
func (q *TrackQueue) dispatch() {
	defer q.wg.Done()

	for {
		select {
		case <-q.done:
			return
		case <-q.notify:
		}

		for {
			e, cancel, ok := q.next()
			if !ok {
				break
			}

			track := e.source.Track()
			if err := q.play(e.source, cancel); err != nil {
				if q.onError != nil {
					q.onError(track, err)
				} else {
					slog.Warn("queue: track playback failed", "title", track.DisplayTitle(), "err", err)
				}
			}

			q.mu.Lock()
			if q.playing == e {
				q.playing = nil
				q.cancelPlaying = nil
			}
			// A skipped or stopped head is already gone.
			if len(q.items) > 0 && q.items[0] == e {
				q.items[0] = nil
				q.items = q.items[1:]
			}
			q.mu.Unlock()

			if q.onTrackEnd != nil {
				q.onTrackEnd(track)
			}
		}
	}
}

// next marks the head as playing. Returns ok=false if the queue is empty.
func (q *TrackQueue) next() (e *entry, cancel chan struct{}, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) == 0 {
		return nil, nil, false
	}
	e = q.items[0]
	cancel = make(chan struct{})
	q.playing = e
	q.cancelPlaying = cancel
	return e, cancel, true
}

// play streams src to the output channel until it ends, cancel is closed or
// the queue is closed. Interruptions are not errors.
func (q *TrackQueue) play(src audio.Source, cancel <-chan struct{}) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		select {
		case <-cancel:
		case <-q.done:
		case <-ctx.Done():
		}
		stop()
	}()

	rc, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer rc.Close()

	buf := make([]byte, audio.FrameBytes)
	var pos time.Duration
	for {
		if !q.waitResumed(cancel) {
			return nil
		}

		n, err := io.ReadFull(rc, buf)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			// Pad the trailing partial frame with silence.
			clear(buf[n:])
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		frame := audio.AudioFrame{
			Data:       bytes.Clone(buf),
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
			Timestamp:  pos,
		}
		select {
		case q.out <- frame:
		case <-cancel:
			return nil
		case <-q.done:
			return nil
		}
		pos += audio.FrameMillis * time.Millisecond

		if n < len(buf) {
			return nil
		}
	}
}

// waitResumed blocks while the queue is paused. It returns false if the
// current track was interrupted in the meantime.
func (q *TrackQueue) waitResumed(cancel <-chan struct{}) bool {
	q.mu.Lock()
	resumed := q.resumed
	q.mu.Unlock()

	select {
	case <-resumed:
		return true
	case <-cancel:
		return false
	case <-q.done:
		return false
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
