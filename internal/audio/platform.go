package audio

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Platform is the operating system the process runs on.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// PlatformInfo describes the host's audio capabilities.
type PlatformInfo struct {
	OS             Platform
	HasAudioDevice bool
	IsCI           bool
}

func (p *PlatformInfo) String() string {
	return fmt.Sprintf("os=%s device=%t ci=%t", p.OS, p.HasAudioDevice, p.IsCI)
}

// ciVars are environment variables set by common CI systems.
var ciVars = []string{
	"CI",
	"CONTINUOUS_INTEGRATION",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"TRAVIS",
	"CIRCLECI",
	"BUILDKITE",
	"DRONE",
	"TEAMCITY_VERSION",
}

// IsCI reports whether the process runs in CI or mock audio was requested
// through MOCK_AUDIO or ENGREPEAT_MOCK_AUDIO.
func IsCI() bool {
	for _, envVar := range ciVars {
		if val := os.Getenv(envVar); val != "" && val != "false" {
			log.Debug("CI environment detected", "variable", envVar, "value", val)
			return true
		}
	}

	if os.Getenv("MOCK_AUDIO") == "true" || os.Getenv("ENGREPEAT_MOCK_AUDIO") == "true" {
		log.Debug("Mock audio requested via environment variable")
		return true
	}

	return false
}

// DetectPlatform inspects the host for an audio device.
func DetectPlatform() *PlatformInfo {
	info := &PlatformInfo{
		OS:   currentPlatform(),
		IsCI: IsCI(),
	}

	switch info.OS {
	case PlatformLinux:
		info.HasAudioDevice = hasLinuxAudioDevice()
	case PlatformDarwin, PlatformWindows:
		info.HasAudioDevice = true
	}

	log.Debug("Platform detected",
		"os", info.OS,
		"has_device", info.HasAudioDevice,
		"is_ci", info.IsCI)

	return info
}

// ShouldUseMock reports whether a device-less mock context is the only
// sensible choice.
func (p *PlatformInfo) ShouldUseMock() bool {
	return p.IsCI || !p.HasAudioDevice
}

// BufferSize returns the recommended device buffer for the platform.
func (p *PlatformInfo) BufferSize() time.Duration {
	switch p.OS {
	case PlatformDarwin:
		return 100 * time.Millisecond
	case PlatformWindows:
		return 80 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}

func currentPlatform() Platform {
	switch runtime.GOOS {
	case "linux":
		return PlatformLinux
	case "darwin":
		return PlatformDarwin
	case "windows":
		return PlatformWindows
	default:
		return PlatformUnknown
	}
}

func hasLinuxAudioDevice() bool {
	if entries, err := os.ReadDir("/dev/snd"); err == nil {
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), "pcm") {
				return true
			}
		}
	}

	if content, err := os.ReadFile("/proc/asound/cards"); err == nil {
		if len(content) > 0 && !strings.Contains(string(content), "no soundcards") {
			return true
		}
	}

	// PulseAudio or PipeWire without direct ALSA access
	if _, err := exec.LookPath("pactl"); err == nil {
		if out, err := exec.Command("pactl", "list", "short", "sinks").Output(); err == nil && len(out) > 0 {
			return true
		}
	}

	log.Debug("No Linux audio devices found")
	return false
}
