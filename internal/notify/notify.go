// Package notify emits the audible alert cue. Delivery is best effort: the
// synthesized tone is tried first, then the embedded chime asset, and any
// failure past that is swallowed so callers are never blocked by audio
// problems.
package notify

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"fleet-console/internal/logging"
	"fleet-console/internal/metrics"
	"fleet-console/internal/models"
)

//go:embed assets/chime.wav
var assets embed.FS

// players tried in order when no override is configured.
var playerCandidates = []string{"paplay", "aplay", "afplay", "play"}

const playTimeout = 5 * time.Second

// SettingsSource supplies the latest cached alert settings.
type SettingsSource func(ctx context.Context) (models.Settings, error)

// Notifier plays the alert tone. The underlying audio engine (the host player
// binary) is discovered once on first use and reused across calls.
type Notifier struct {
	logger   *logging.Logger
	settings SettingsSource
	override string

	mu     sync.Mutex
	player string
	init   bool
}

// New builds a Notifier. playerOverride, when non-empty, names the player
// binary to use instead of auto-detection.
func New(logger *logging.Logger, settings SettingsSource, playerOverride string) *Notifier {
	return &Notifier{logger: logger, settings: settings, override: playerOverride}
}

// Notify plays the alert tone, honoring the effective settings: the override
// when supplied, otherwise the latest settings snapshot. Always returns nil;
// notification failures must never propagate.
func (n *Notifier) Notify(ctx context.Context, settingsOverride *models.Settings) error {
	s := n.resolveSettings(ctx, settingsOverride)
	if !s.EnableAudioNotifications {
		metrics.NotificationsTotal.WithLabelValues("silent").Inc()
		return nil
	}

	gain := float64(s.AlertVolume) / 100.0
	if err := n.play(ctx, synthesizeTone(gain)); err == nil {
		metrics.NotificationsTotal.WithLabelValues("played").Inc()
		return nil
	} else {
		n.logger.Warnf("Alert tone failed, trying fallback: %v", err)
	}

	if err := n.playFallback(ctx); err != nil {
		n.logger.Warnf("Fallback chime failed, alert will be silent: %v", err)
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return nil
	}
	metrics.NotificationsTotal.WithLabelValues("fallback").Inc()
	return nil
}

// Reset discards the discovered player so the next call re-initializes.
// Intended for test isolation.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.player = ""
	n.init = false
}

func (n *Notifier) resolveSettings(ctx context.Context, override *models.Settings) models.Settings {
	if override != nil {
		return *override
	}
	if n.settings != nil {
		if s, err := n.settings(ctx); err == nil {
			return s
		}
	}
	// No settings available yet: audible at a moderate volume
	return models.Settings{
		EnableAudioNotifications: true,
		AlertVolume:              70,
		MaxAlertReminders:        models.DefaultMaxReminders,
	}
}

// engine discovers the host audio player, once.
func (n *Notifier) engine() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.init {
		if n.player == "" {
			return "", fmt.Errorf("no audio player available")
		}
		return n.player, nil
	}
	n.init = true

	candidates := playerCandidates
	if n.override != "" {
		candidates = []string{n.override}
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			n.player = path
			return path, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried %v)", candidates)
}

func (n *Notifier) playFallback(ctx context.Context) error {
	wav, err := assets.ReadFile("assets/chime.wav")
	if err != nil {
		return fmt.Errorf("read chime asset: %w", err)
	}
	return n.play(ctx, wav)
}

// play feeds a WAV through the host player. The audio goes to a temp file
// because not every player accepts stdin.
func (n *Notifier) play(ctx context.Context, wav []byte) error {
	player, err := n.engine()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "fleet-alert-*.wav")
	if err != nil {
		return fmt.Errorf("create temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(wav); err != nil {
		f.Close()
		return fmt.Errorf("write temp wav: %w", err)
	}
	f.Close()

	ctx, cancel := context.WithTimeout(ctx, playTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, player, f.Name()).Run(); err != nil {
		return fmt.Errorf("run %s: %w", player, err)
	}
	return nil
}
