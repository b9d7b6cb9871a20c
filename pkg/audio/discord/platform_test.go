package discord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// ─── compile-time interface assertions ───────────────────────────────────────

var _ audio.Platform = (*Platform)(nil)
var _ audio.Connection = (*Connection)(nil)

// ─── test helpers ─────────────────────────────────────────────────────────────

// speakingRecorder records speaking notifications in order.
type speakingRecorder struct {
	mu    sync.Mutex
	calls []bool
}

func (r *speakingRecorder) speak(b bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, b)
	return nil
}

func (r *speakingRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

// newTestConnection creates a Connection suitable for unit testing without
// a real Discord voice connection. It wires up a fake OpusSend channel.
func newTestConnection(t *testing.T) (*Connection, *speakingRecorder) {
	t.Helper()
	rec := &speakingRecorder{}
	vc := &discordgo.VoiceConnection{
		OpusSend: make(chan []byte, 16),
	}
	c := &Connection{
		vc:           vc,
		guildID:      "guild-test",
		channelID:    "voice-test",
		output:       make(chan audio.AudioFrame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: func() error { return nil },
		speaking:     rec.speak,
	}
	go c.sendLoop()
	t.Cleanup(func() { _ = c.Disconnect() })
	return c, rec
}

// fakeJoiner implements voiceJoiner. Like discordgo, it can hand every
// join the same connection when vc is set.
type fakeJoiner struct {
	mu    sync.Mutex
	calls [][4]any
	err   error
	gate  chan struct{}

	// gates blocks the call with the given index until closed.
	gates map[int]chan struct{}
	vc    *discordgo.VoiceConnection
}

func (f *fakeJoiner) ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, [4]any{gID, cID, mute, deaf})
	gate := f.gate
	if g, ok := f.gates[idx]; ok {
		gate = g
	}
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.vc != nil {
		return f.vc, nil
	}
	return &discordgo.VoiceConnection{OpusSend: make(chan []byte, 16)}, nil
}

// leaveRecorder records the connections an abandoned join tears down.
type leaveRecorder struct {
	mu   sync.Mutex
	left []*discordgo.VoiceConnection
}

func (r *leaveRecorder) leave(vc *discordgo.VoiceConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, vc)
	return nil
}

func (r *leaveRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.left)
}

// cancelledConnect starts Connect, cancels it once the join is underway and
// returns the Connect error.
func cancelledConnect(t *testing.T, p *Platform, j *fakeJoiner, guildID string) error {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Connect(ctx, guildID, "voice-1")
		errCh <- err
	}()
	for {
		j.mu.Lock()
		n := len(j.calls)
		j.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-errCh:
		return err
	case <-time.After(time.Second):
		t.Fatal("Connect did not honour cancellation")
		return nil
	}
}

// ─── Platform tests ──────────────────────────────────────────────────────────

func TestNewPlatform(t *testing.T) {
	t.Parallel()

	s := &discordgo.Session{}
	p := New(s)
	if p == nil {
		t.Fatal("New returned nil")
	}
	if p.session != s {
		t.Error("session not stored correctly")
	}
}

func TestPlatform_ConnectJoinsDeafened(t *testing.T) {
	t.Parallel()

	j := &fakeJoiner{}
	p := &Platform{session: j}

	conn, err := p.Connect(t.Context(), "guild-1", "voice-1")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c := conn.(*Connection)
	c.disconnectVC = func() error { return nil }
	defer c.Disconnect()

	if got := conn.ChannelID(); got != "voice-1" {
		t.Errorf("ChannelID() = %q, want %q", got, "voice-1")
	}
	if len(j.calls) != 1 {
		t.Fatalf("ChannelVoiceJoin calls = %d, want 1", len(j.calls))
	}
	want := [4]any{"guild-1", "voice-1", false, true}
	if j.calls[0] != want {
		t.Errorf("ChannelVoiceJoin args = %v, want %v", j.calls[0], want)
	}
}

func TestPlatform_ConnectError(t *testing.T) {
	t.Parallel()

	joinErr := errors.New("voice gateway unavailable")
	p := &Platform{session: &fakeJoiner{err: joinErr}}

	_, err := p.Connect(t.Context(), "guild-1", "voice-1")
	if !errors.Is(err, joinErr) {
		t.Fatalf("Connect error = %v, want wrapping %v", err, joinErr)
	}
}

func TestPlatform_ConnectCancelled(t *testing.T) {
	t.Parallel()

	// The late join fails so the abandoned attempt has nothing to tear down.
	j := &fakeJoiner{gate: make(chan struct{}), err: errors.New("late")}
	p := &Platform{session: j}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Connect(ctx, "guild-1", "voice-1")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Connect error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect did not honour cancellation")
	}
	close(j.gate)
}

func TestPlatform_AbandonedJoinIsTornDown(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	vc := &discordgo.VoiceConnection{OpusSend: make(chan []byte, 16)}
	j := &fakeJoiner{vc: vc, gates: map[int]chan struct{}{0: gate}}
	rec := &leaveRecorder{}
	p := &Platform{session: j, leave: rec.leave}

	if err := cancelledConnect(t, p, j, "guild-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect error = %v, want context.Canceled", err)
	}
	close(gate)

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count() != 1 || rec.left[0] != vc {
		t.Fatalf("torn down %d connections, want the late one once", rec.count())
	}
}

func TestPlatform_AbandonedJoinKeepsNewerJoin(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	vc := &discordgo.VoiceConnection{OpusSend: make(chan []byte, 16)}
	j := &fakeJoiner{vc: vc, gates: map[int]chan struct{}{0: gate}}
	rec := &leaveRecorder{}
	p := &Platform{session: j, leave: rec.leave}

	if err := cancelledConnect(t, p, j, "guild-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("first Connect error = %v, want context.Canceled", err)
	}

	conn, err := p.Connect(t.Context(), "guild-1", "voice-1")
	if err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	c := conn.(*Connection)
	c.disconnectVC = func() error { return nil }
	defer c.Disconnect()
	if c.vc != vc {
		t.Fatal("second join did not get the shared voice connection")
	}

	// The first join completes only now, after the second one took over.
	close(gate)
	time.Sleep(50 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("late join tore down %d connections, want 0", n)
	}
}

func TestPlatform_AbandonedJoinIgnoresOtherGuilds(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	j := &fakeJoiner{gates: map[int]chan struct{}{0: gate}}
	rec := &leaveRecorder{}
	p := &Platform{session: j, leave: rec.leave}

	if err := cancelledConnect(t, p, j, "guild-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect error = %v, want context.Canceled", err)
	}
	conn, err := p.Connect(t.Context(), "guild-2", "voice-1")
	if err != nil {
		t.Fatalf("Connect guild-2: %v", err)
	}
	c := conn.(*Connection)
	c.disconnectVC = func() error { return nil }
	defer c.Disconnect()

	close(gate)
	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count() != 1 {
		t.Errorf("torn down %d connections, want 1", rec.count())
	}
}

// ─── Connection tests ─────────────────────────────────────────────────────────

// TestConnection_DisconnectIdempotent verifies that Disconnect can be called
// multiple times and returns nil on subsequent calls.
func TestConnection_DisconnectIdempotent(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnection(t)
	calls := 0
	c.disconnectVC = func() error {
		calls++
		return errors.New("already gone")
	}
	for i := range 3 {
		err := c.Disconnect()
		if i == 0 && err == nil {
			t.Fatal("Disconnect[0]: expected error from voice connection")
		}
		if i > 0 && err != nil {
			t.Fatalf("Disconnect[%d]: unexpected error: %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("voice disconnect calls = %d, want 1", calls)
	}
}

func TestConnection_OutputStreamNotNil(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnection(t)
	if c.OutputStream() == nil {
		t.Fatal("OutputStream returned nil")
	}
	if c.ChannelID() != "voice-test" {
		t.Errorf("ChannelID() = %q, want %q", c.ChannelID(), "voice-test")
	}
}

// TestConnection_SendEncodes verifies that frames written to OutputStream
// are encoded and appear on OpusSend.
func TestConnection_SendEncodes(t *testing.T) {
	t.Parallel()

	c, rec := newTestConnection(t)

	c.OutputStream() <- audio.AudioFrame{
		Data:       make([]byte, audio.FrameBytes),
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}

	select {
	case opus := <-c.vc.OpusSend:
		if len(opus) == 0 {
			t.Error("OpusSend: received empty Opus packet")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Opus packet on OpusSend")
	}

	if calls := rec.snapshot(); len(calls) == 0 || !calls[0] {
		t.Errorf("speaking calls = %v, want first call true", calls)
	}
}

// TestConnection_SendRechunks verifies that frames of arbitrary size are
// regrouped into whole Opus frames.
func TestConnection_SendRechunks(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnection(t)

	half := audio.FrameBytes / 2
	for range 3 {
		c.OutputStream() <- audio.AudioFrame{Data: make([]byte, half)}
	}

	select {
	case <-c.vc.OpusSend:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Opus packet")
	}
	select {
	case <-c.vc.OpusSend:
		t.Fatal("got a second packet from 1.5 frames of input")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestConnection_SpeakingIdle verifies that the speaking flag drops once
// output goes quiet.
func TestConnection_SpeakingIdle(t *testing.T) {
	t.Parallel()

	c, rec := newTestConnection(t)
	c.OutputStream() <- audio.AudioFrame{Data: make([]byte, audio.FrameBytes)}
	<-c.vc.OpusSend

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		calls := rec.snapshot()
		if len(calls) >= 2 && calls[0] && !calls[1] {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("speaking calls = %v, want [true false]", rec.snapshot())
}

// TestConnection_ConcurrentDisconnect exercises Disconnect from multiple
// goroutines to verify thread safety (run with -race).
func TestConnection_ConcurrentDisconnect(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnection(t)
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			_ = c.Disconnect()
		})
	}
	wg.Wait()
}
