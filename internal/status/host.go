package status

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HostNetwork classifies the host's active interfaces. Root is the sysfs
// net class directory (/sys/class/net); when it is missing, interface
// names alone decide.
type HostNetwork struct {
	Root       string
	Interfaces func() ([]net.Interface, error)
}

// NewHostNetwork returns a probe reading root.
func NewHostNetwork(root string) *HostNetwork {
	return &HostNetwork{Root: root, Interfaces: net.Interfaces}
}

// Network returns "wifi", "ethernet", "cellular" or "none", preferring
// them in that order when several interfaces are up.
func (h *HostNetwork) Network(_ context.Context) (string, error) {
	ifaces, err := h.Interfaces()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	found := map[string]bool{}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		found[h.classify(iface.Name)] = true
	}

	for _, kind := range []string{"wifi", "ethernet", "cellular"} {
		if found[kind] {
			return kind, nil
		}
	}
	return "none", nil
}

func (h *HostNetwork) classify(name string) string {
	if h.Root != "" {
		if _, err := os.Stat(filepath.Join(h.Root, name, "wireless")); err == nil {
			return "wifi"
		}
	}
	switch {
	case strings.HasPrefix(name, "wl"):
		return "wifi"
	case strings.HasPrefix(name, "ww"), strings.HasPrefix(name, "rmnet"), strings.HasPrefix(name, "ccmni"):
		return "cellular"
	default:
		return "ethernet"
	}
}

// HostPower reads the first battery under the sysfs power_supply directory.
type HostPower struct {
	Root string
}

// NewHostPower returns a power source reading root.
func NewHostPower(root string) *HostPower {
	return &HostPower{Root: root}
}

// Level returns the battery capacity as a fraction, or ErrUnavailable when
// the host has no battery.
func (h *HostPower) Level(_ context.Context) (float64, error) {
	supplies, err := os.ReadDir(h.Root)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for _, supply := range supplies {
		dir := filepath.Join(h.Root, supply.Name())
		kind, err := os.ReadFile(filepath.Join(dir, "type"))
		if err != nil || strings.TrimSpace(string(kind)) != "Battery" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, "capacity"))
		if err != nil {
			continue
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		return float64(capacity) / 100, nil
	}

	return 0, ErrUnavailable
}
