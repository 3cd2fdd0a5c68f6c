// Package status computes the phone status bar string
// "<time> | <network> | <battery>" from the host's clock, network and power.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/edgard/aiphone/internal/logger"
)

// Sentinel labels used when a capability is unavailable or still pending.
const (
	UnknownNetwork = "Unknown network"
	UnknownBattery = "Battery unknown"

	separator = " | "
)

// ErrUnavailable is returned by probes when the host has no such capability.
var ErrUnavailable = errors.New("capability unavailable")

var networkLabels = map[string]string{
	"wifi":     "Wi-Fi",
	"cellular": "5G/4G",
	"ethernet": "Ethernet",
	"none":     "No network",
}

// NetworkProbe reports a raw network-type identifier such as "wifi".
type NetworkProbe interface {
	Network(ctx context.Context) (string, error)
}

// PowerSource reports the battery level as a fraction in [0, 1].
type PowerSource interface {
	Level(ctx context.Context) (float64, error)
}

// NetworkLabel maps a raw identifier to its display label. Unmapped
// identifiers, the empty one included, are shown verbatim; UnknownNetwork is
// reserved for a missing or failing probe.
func NetworkLabel(raw string) string {
	if label, ok := networkLabels[raw]; ok {
		return label
	}
	return raw
}

// BatteryLabel formats a level fraction as a rounded percentage.
func BatteryLabel(level float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(level*100)))
}

// TimeLabel formats t as 24-hour HH:MM.
func TimeLabel(t time.Time) string {
	return t.Format("15:04")
}

// Compose joins the three segments.
func Compose(timeLabel, networkLabel, batteryLabel string) string {
	return timeLabel + separator + networkLabel + separator + batteryLabel
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// WithLocation sets the time zone of the time label.
func WithLocation(loc *time.Location) Option {
	return func(r *Reporter) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reporter) {
		if log != nil {
			r.log = log
		}
	}
}

// Reporter holds the latest segments and the composed string. Every change
// goes through update, which recomposes all three segments together, so the
// minute tick and battery changes can never overwrite each other's data.
//
// The network segment is captured once by Start and not re-queried.
type Reporter struct {
	network NetworkProbe
	power   PowerSource
	now     func() time.Time
	loc     *time.Location
	log     *slog.Logger

	mu           sync.RWMutex
	timeLabel    string
	networkLabel string
	batteryLabel string
	level        float64
	hasLevel     bool
	powerOK      bool
	current      string
	listeners    []func(string)
}

// New creates a Reporter. Nil probes are treated as unavailable.
func New(network NetworkProbe, power PowerSource, opts ...Option) *Reporter {
	r := &Reporter{
		network:      network,
		power:        power,
		now:          time.Now,
		loc:          time.Local,
		log:          logger.Discard(),
		networkLabel: UnknownNetwork,
		batteryLabel: UnknownBattery,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "status")
	r.timeLabel = TimeLabel(r.now().In(r.loc))
	r.current = Compose(r.timeLabel, r.networkLabel, r.batteryLabel)
	return r
}

// OnChange registers fn to receive every newly composed string.
func (r *Reporter) OnChange(fn func(string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Start captures the network label, renders immediately with whatever is
// ready, and queries the power source in the background. The returned
// channel is closed once the battery query has finished.
func (r *Reporter) Start(ctx context.Context) <-chan struct{} {
	networkLabel := UnknownNetwork
	if r.network != nil {
		raw, err := r.network.Network(ctx)
		if err != nil {
			r.log.DebugContext(ctx, "Network probe unavailable", "error", err)
		} else {
			networkLabel = NetworkLabel(raw)
		}
	}

	r.update(func() {
		r.timeLabel = TimeLabel(r.now().In(r.loc))
		r.networkLabel = networkLabel
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if r.power == nil {
			return
		}
		level, err := r.power.Level(ctx)
		if err != nil {
			r.log.DebugContext(ctx, "Power source unavailable, battery segment stays unknown", "error", err)
			return
		}
		r.update(func() {
			r.powerOK = true
			r.setLevel(level)
		})
	}()
	return done
}

// Refresh updates the time label. Network and battery keep their last values.
func (r *Reporter) Refresh() {
	r.update(func() {
		r.timeLabel = TimeLabel(r.now().In(r.loc))
	})
}

// PollPower re-reads the battery level and re-renders only when it changed.
// It is a no-op when the initial power query failed.
func (r *Reporter) PollPower(ctx context.Context) error {
	r.mu.RLock()
	enabled := r.powerOK && r.power != nil
	r.mu.RUnlock()
	if !enabled {
		return nil
	}

	level, err := r.power.Level(ctx)
	if err != nil {
		return fmt.Errorf("failed to read battery level: %w", err)
	}
	r.SetBatteryLevel(level)
	return nil
}

// SetBatteryLevel records a battery change notification.
func (r *Reporter) SetBatteryLevel(level float64) {
	r.mu.RLock()
	unchanged := r.hasLevel && r.level == level
	r.mu.RUnlock()
	if unchanged {
		return
	}
	r.update(func() {
		r.powerOK = true
		r.setLevel(level)
	})
}

func (r *Reporter) setLevel(level float64) {
	r.level = level
	r.hasLevel = true
	r.batteryLabel = BatteryLabel(level)
}

// Current returns the last composed string.
func (r *Reporter) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// update applies mutate and recomposes the status string under the lock,
// then notifies listeners outside of it.
func (r *Reporter) update(mutate func()) {
	r.mu.Lock()
	mutate()
	next := Compose(r.timeLabel, r.networkLabel, r.batteryLabel)
	changed := next != r.current
	r.current = next
	listeners := append([]func(string){}, r.listeners...)
	r.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(next)
	}
}
