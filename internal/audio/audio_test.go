package audio

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/dgnsrekt/engrepeat/internal/pcm"
)

func TestMockContext(t *testing.T) {
	mockCtx := NewMockContext(DefaultOptions())
	defer mockCtx.Close()

	var ctx Context = mockCtx
	if !ctx.IsReady() {
		t.Error("Mock context should be ready immediately")
	}
	if ctx.SampleRate() != 24000 {
		t.Errorf("Expected sample rate 24000, got %d", ctx.SampleRate())
	}
	if ctx.ChannelCount() != 1 {
		t.Errorf("Expected 1 channel, got %d", ctx.ChannelCount())
	}

	mockCtx.MinDuration = time.Second
	player, err := ctx.NewPlayer(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 0}))
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	defer player.Close()

	player.Play()
	if !player.IsPlaying() {
		t.Error("Player should be playing after Play()")
	}

	player.Pause()
	if player.IsPlaying() {
		t.Error("Player should not be playing after Pause()")
	}

	player.SetVolume(0.5)
	if player.Volume() != 0.5 {
		t.Errorf("Expected volume 0.5, got %f", player.Volume())
	}

	if mockCtx.PlayersCreated != 1 {
		t.Errorf("Expected 1 player created, got %d", mockCtx.PlayersCreated)
	}
	if mockCtx.Plays() != 1 {
		t.Errorf("Expected 1 play, got %d", mockCtx.Plays())
	}
}

func TestMockContextClosed(t *testing.T) {
	mockCtx := NewMockContext(DefaultOptions())
	_ = mockCtx.Close()

	if _, err := mockCtx.NewPlayer(bytes.NewReader(nil)); err == nil {
		t.Error("Expected error from closed context")
	}
}

func TestMockPlaybackFinishes(t *testing.T) {
	mockCtx := NewMockContext(DefaultOptions())
	defer mockCtx.Close()

	// 2400 float32 frames at 24kHz = 100ms
	player, err := mockCtx.NewPlayer(bytes.NewReader(make([]byte, 2400*BytesPerSample)))
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	player.Play()

	deadline := time.Now().Add(2 * time.Second)
	for player.IsPlaying() {
		if time.Now().After(deadline) {
			t.Fatal("Mock playback did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestContextFactory(t *testing.T) {
	ctx, err := NewContext(ContextMock, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to create audio context: %v", err)
	}
	defer ctx.Close()

	if _, ok := ctx.(*MockContext); !ok {
		t.Error("Expected mock audio context")
	}

	if _, err := NewContext(ContextType(42), DefaultOptions()); err == nil {
		t.Error("Expected error for unknown context type")
	}
}

func TestGlobalContextIsReused(t *testing.T) {
	ResetGlobalContext()
	defer ResetGlobalContext()

	Configure(ContextMock, DefaultOptions())
	defer Configure(ContextAuto, DefaultOptions())

	first, err := GlobalContext()
	if err != nil {
		t.Fatalf("GlobalContext failed: %v", err)
	}
	second, err := GlobalContext()
	if err != nil {
		t.Fatalf("GlobalContext failed: %v", err)
	}
	if first != second {
		t.Error("Expected the same global context on every call")
	}

	replacement := NewMockContext(DefaultOptions())
	SetGlobalContext(replacement)
	got, _ := GlobalContext()
	if got != Context(replacement) {
		t.Error("Expected SetGlobalContext to replace the global context")
	}
}

func TestCIDetection(t *testing.T) {
	envVars := append(append([]string{}, ciVars...), "MOCK_AUDIO", "ENGREPEAT_MOCK_AUDIO")

	tests := []struct {
		name     string
		env      map[string]string
		expectCI bool
	}{
		{"No CI environment", map[string]string{}, false},
		{"CI environment variable set", map[string]string{"CI": "true"}, true},
		{"CI explicitly false", map[string]string{"CI": "false"}, false},
		{"GitHub Actions environment", map[string]string{"GITHUB_ACTIONS": "true"}, true},
		{"Mock audio requested", map[string]string{"ENGREPEAT_MOCK_AUDIO": "true"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envVars {
				if val, ok := os.LookupEnv(key); ok {
					t.Setenv(key, val)
					os.Unsetenv(key)
				}
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if IsCI() != tt.expectCI {
				t.Errorf("Expected IsCI() = %v, got %v", tt.expectCI, IsCI())
			}
		})
	}
}

func TestOutputPlayFinishes(t *testing.T) {
	mockCtx := NewMockContext(DefaultOptions())
	mockCtx.MinDuration = 30 * time.Millisecond
	mockCtx.Record = true
	out := NewOutputWithContext(mockCtx)

	buf := pcm.Decode(pcm.Encode([]int16{0, 16384}), 24000, 1)
	done, err := out.Play(context.Background(), buf)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Playback did not signal completion")
	}

	played := mockCtx.Played()
	if len(played) != 1 {
		t.Fatalf("Expected 1 stream, got %d", len(played))
	}
	if !bytes.Equal(played[0], buf.Float32LE()) {
		t.Error("Played data does not match buffer")
	}
	if mockCtx.Closed() != 1 {
		t.Errorf("Expected player to be closed, got %d closed", mockCtx.Closed())
	}
}

func TestMockReleasesFinishedPlayers(t *testing.T) {
	mockCtx := NewMockContext(DefaultOptions())
	out := NewOutputWithContext(mockCtx)
	buf := pcm.Decode(pcm.Encode([]int16{0, 16384}), 24000, 1)

	for i := 0; i < 5; i++ {
		done, err := out.Play(context.Background(), buf)
		if err != nil {
			t.Fatalf("Play %d failed: %v", i, err)
		}
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("Play %d did not finish", i)
		}
	}

	if mockCtx.Plays() != 5 {
		t.Errorf("Expected 5 plays, got %d", mockCtx.Plays())
	}
	if mockCtx.Open() != 0 {
		t.Errorf("Expected finished players to be released, %d still open", mockCtx.Open())
	}
	if len(mockCtx.Played()) != 0 {
		t.Error("Expected no recorded streams when Record is off")
	}
}

func TestOutputPlayCancel(t *testing.T) {
	mockCtx := NewMockContext(DefaultOptions())
	mockCtx.MinDuration = time.Hour
	out := NewOutputWithContext(mockCtx)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := out.Play(ctx, pcm.Decode(pcm.Encode([]int16{1, 2, 3}), 24000, 1))
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancelled playback did not signal completion")
	}
}

func TestOutputEmptyBuffer(t *testing.T) {
	mockCtx := NewMockContext(DefaultOptions())
	out := NewOutputWithContext(mockCtx)

	done, err := out.Play(context.Background(), pcm.Decode(nil, 24000, 1))
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	select {
	case <-done:
	default:
		t.Error("Expected empty buffer to complete immediately")
	}
	if mockCtx.PlayersCreated != 0 {
		t.Errorf("Expected no players for empty buffer, got %d", mockCtx.PlayersCreated)
	}
}
