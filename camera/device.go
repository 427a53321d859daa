package camera

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// SelectDevice presents an interactive camera picker. With a single camera
// it returns that camera without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating cameras: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, ErrDeviceUnavailable
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select camera (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			tag := ""
			if IsVirtual(d.Name) {
				tag = " \x1b[33m[virtual]\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
			} else {
				fmt.Printf("    %s%s\r\n", d.Name, tag)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch {
		case n == 1 && buf[0] == 13: // Enter
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'): // Ctrl+C
			fmt.Print("\r\n")
			return nil, fmt.Errorf("camera selection cancelled")
		case (n == 1 && buf[0] == 'j') || (n == 3 && buf[0] == 0x1b && buf[2] == 'B'):
			cursor = min(cursor+1, len(devices)-1)
		case (n == 1 && buf[0] == 'k') || (n == 3 && buf[0] == 0x1b && buf[2] == 'A'):
			cursor = max(cursor-1, 0)
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}

// FindDevice returns the camera whose ID or name equals key.
func FindDevice(ctx Context, key string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	for i, d := range devices {
		if d.ID == key || d.Name == key {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no camera named %q", ErrDeviceUnavailable, key)
}
