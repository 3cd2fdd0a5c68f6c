package status

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "14:05 | Wi-Fi | 82%", Compose("14:05", "Wi-Fi", "82%"))
}

func TestLabels(t *testing.T) {
	t.Parallel()

	networks := map[string]string{
		"wifi":     "Wi-Fi",
		"cellular": "5G/4G",
		"ethernet": "Ethernet",
		"none":     "No network",
		"4g":       "4g",
		"":         "",
	}
	for raw, want := range networks {
		assert.Equal(t, want, NetworkLabel(raw), "raw %q", raw)
	}

	assert.Equal(t, "82%", BatteryLabel(0.82))
	assert.Equal(t, "100%", BatteryLabel(1))
	assert.Equal(t, "1%", BatteryLabel(0.005))

	at := time.Date(2026, 10, 19, 9, 5, 59, 0, time.UTC)
	assert.Equal(t, "09:05", TimeLabel(at))
}

type fakeNetwork struct {
	raw string
	err error
}

func (f fakeNetwork) Network(context.Context) (string, error) { return f.raw, f.err }

type fakePower struct {
	mu    sync.Mutex
	level float64
	err   error
	calls int
}

func (f *fakePower) Level(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.level, f.err
}

func (f *fakePower) set(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)}
}

func TestReporterStart(t *testing.T) {
	t.Parallel()

	clock := newClock()
	power := &fakePower{level: 0.82}
	r := New(fakeNetwork{raw: "wifi"}, power, WithClock(clock.Now), WithLocation(time.UTC))

	var mu sync.Mutex
	var seen []string
	r.OnChange(func(s string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	<-r.Start(context.Background())

	assert.Equal(t, "14:05 | Wi-Fi | 82%", r.Current())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, "14:05 | Wi-Fi | Battery unknown", seen[0])
	assert.Equal(t, "14:05 | Wi-Fi | 82%", seen[1])
}

func TestReporterUnavailableCapabilities(t *testing.T) {
	t.Parallel()

	power := &fakePower{err: ErrUnavailable}
	r := New(fakeNetwork{err: ErrUnavailable}, power, WithClock(newClock().Now), WithLocation(time.UTC))
	<-r.Start(context.Background())

	assert.Equal(t, "14:05 | Unknown network | Battery unknown", r.Current())

	require.NoError(t, r.PollPower(context.Background()))
	assert.Equal(t, 1, power.calls, "no retries after the power query failed")

	nilProbes := New(nil, nil, WithClock(newClock().Now), WithLocation(time.UTC))
	<-nilProbes.Start(context.Background())
	assert.Equal(t, "14:05 | Unknown network | Battery unknown", nilProbes.Current())
}

func TestReporterEmptyNetworkShownVerbatim(t *testing.T) {
	t.Parallel()

	r := New(fakeNetwork{raw: ""}, &fakePower{level: 0.5}, WithClock(newClock().Now), WithLocation(time.UTC))
	<-r.Start(context.Background())

	assert.Equal(t, "14:05 |  | 50%", r.Current())
}

func TestRefreshKeepsLatestBattery(t *testing.T) {
	t.Parallel()

	clock := newClock()
	power := &fakePower{level: 0.82}
	r := New(fakeNetwork{raw: "ethernet"}, power, WithClock(clock.Now), WithLocation(time.UTC))
	<-r.Start(context.Background())

	power.set(0.5)
	require.NoError(t, r.PollPower(context.Background()))
	assert.Equal(t, "14:05 | Ethernet | 50%", r.Current())

	clock.Advance(time.Minute)
	r.Refresh()
	assert.Equal(t, "14:06 | Ethernet | 50%", r.Current(), "tick must not revert the battery segment")
}

func TestSetBatteryLevelIgnoresUnchanged(t *testing.T) {
	t.Parallel()

	r := New(fakeNetwork{raw: "wifi"}, nil, WithClock(newClock().Now), WithLocation(time.UTC))
	<-r.Start(context.Background())

	calls := 0
	r.OnChange(func(string) { calls++ })

	r.SetBatteryLevel(0.4)
	r.SetBatteryLevel(0.4)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "14:05 | Wi-Fi | 40%", r.Current())
}

func TestPollPowerError(t *testing.T) {
	t.Parallel()

	power := &fakePower{level: 0.3}
	r := New(nil, power, WithClock(newClock().Now), WithLocation(time.UTC))
	<-r.Start(context.Background())

	power.mu.Lock()
	power.err = errors.New("read failed")
	power.mu.Unlock()

	assert.Error(t, r.PollPower(context.Background()))
	assert.Equal(t, "14:05 | Unknown network | 30%", r.Current())
}

func TestHostNetwork(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "radio0", "wireless"), 0o755))

	up := net.FlagUp
	tests := []struct {
		name   string
		ifaces []net.Interface
		want   string
	}{
		{name: "only loopback", ifaces: []net.Interface{{Name: "lo", Flags: up | net.FlagLoopback}}, want: "none"},
		{name: "ethernet", ifaces: []net.Interface{{Name: "eth0", Flags: up}}, want: "ethernet"},
		{name: "down interface ignored", ifaces: []net.Interface{{Name: "eth0"}}, want: "none"},
		{name: "wireless dir", ifaces: []net.Interface{{Name: "eth0", Flags: up}, {Name: "radio0", Flags: up}}, want: "wifi"},
		{name: "wl prefix", ifaces: []net.Interface{{Name: "wlan0", Flags: up}}, want: "wifi"},
		{name: "cellular", ifaces: []net.Interface{{Name: "wwan0", Flags: up}}, want: "cellular"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := &HostNetwork{Root: root, Interfaces: func() ([]net.Interface, error) { return tt.ifaces, nil }}
			got, err := h.Network(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	failing := &HostNetwork{Interfaces: func() ([]net.Interface, error) { return nil, errors.New("boom") }}
	_, err := failing.Network(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHostPower(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSupply := func(name, kind, capacity string) {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "type"), []byte(kind+"\n"), 0o644))
		if capacity != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "capacity"), []byte(capacity+"\n"), 0o644))
		}
	}

	writeSupply("AC", "Mains", "")
	_, err := NewHostPower(root).Level(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	writeSupply("BAT0", "Battery", "82")
	level, err := NewHostPower(root).Level(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.82, level, 0.0001)

	_, err = NewHostPower(filepath.Join(root, "missing")).Level(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
