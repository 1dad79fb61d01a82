package indicator

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLEDDir is the activity LED on the reference board.
const DefaultLEDDir = "/sys/class/leds/led0"

// DefaultTrigger is the kernel trigger the LED is returned to on Restore.
const DefaultTrigger = "mmc0"

// SysfsLED drives a Linux LED class device.  While owned, its trigger
// is "none" and brightness is written directly.
type SysfsLED struct {
	Dir            string
	DefaultTrigger string

	owned bool
}

// NewSysfsLED returns an LED rooted at dir (e.g. /sys/class/leds/led0).
func NewSysfsLED(dir, defaultTrigger string) *SysfsLED {
	if dir == "" {
		dir = DefaultLEDDir
	}
	if defaultTrigger == "" {
		defaultTrigger = DefaultTrigger
	}
	return &SysfsLED{Dir: dir, DefaultTrigger: defaultTrigger}
}

// Setup implements Indicator.
func (l *SysfsLED) Setup() error {
	if err := l.write("trigger", "none"); err != nil {
		return err
	}
	if err := l.write("brightness", "0"); err != nil {
		return err
	}
	l.owned = true
	return nil
}

// Set implements Indicator.
func (l *SysfsLED) Set(on bool) error {
	if !l.owned {
		return ErrNotSetup
	}
	v := "0"
	if on {
		v = "1"
	}
	return l.write("brightness", v)
}

// Restore implements Indicator.
func (l *SysfsLED) Restore() error {
	if !l.owned {
		return nil
	}
	l.owned = false
	return l.write("trigger", l.DefaultTrigger)
}

// write replaces the content of one attribute file.  The file must
// already exist: a missing LED is an error, not something to create.
func (l *SysfsLED) write(attr, value string) error {
	path := filepath.Join(l.Dir, attr)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("led %s: %w", attr, err)
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return fmt.Errorf("led %s: %w", attr, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("led %s: %w", attr, err)
	}
	return nil
}
