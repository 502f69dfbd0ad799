package presence

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// BluetoothSource reads connected devices from bluetoothctl. Each call
// runs one command with its own timeout.
type BluetoothSource struct {
	Bin     string
	Timeout time.Duration
}

func NewBluetoothSource(bin string, timeout time.Duration) *BluetoothSource {
	if bin == "" {
		bin = "bluetoothctl"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &BluetoothSource{Bin: bin, Timeout: timeout}
}

func (b *BluetoothSource) Devices(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, b.Bin, "devices", "Connected").Output()
	if err != nil {
		return nil, err
	}
	return parseDevices(string(out)), nil
}

// parseDevices reads bluetoothctl output lines of the form
// "Device AA:BB:CC:DD:EE:FF Some Name".
func parseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 || parts[0] != "Device" || !strings.Contains(parts[1], ":") {
			continue
		}
		addr := parts[1]
		name := addr
		if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
			name = strings.TrimSpace(parts[2])
		}
		devices = append(devices, Device{
			ID:          addr,
			DisplayName: name,
			Address:     addr,
			Active:      true,
			Kind:        kindFor(name),
		})
	}
	return devices
}

func kindFor(name string) string {
	lower := strings.ToLower(name)
	for _, hint := range []string{"controller", "gamepad", "joy-con", "joycon", "8bitdo"} {
		if strings.Contains(lower, hint) {
			return "gamepad"
		}
	}
	return "bluetooth"
}
