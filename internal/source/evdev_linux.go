//go:build linux

package source

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/holoplot/go-evdev"
	"github.com/sourcegraph/conc/pool"

	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
)

// Bus types from linux/input.h that mark a device as external.
const (
	busUSB       = 0x03
	busBluetooth = 0x05
)

// EvdevConfig configures the evdev source.
type EvdevConfig struct {
	// Paths lists device nodes such as /dev/input/event3. When empty every
	// device reporting keys the mapper knows is opened.
	Paths []string

	// Grab takes exclusive access to each device. Events the sink does not
	// consume are re-emitted on a virtual clone of the device, so consumed
	// keys never reach other programs.
	Grab bool
}

// Evdev reads key events from Linux input devices.
type Evdev struct {
	cfg EvdevConfig
	log *logging.Logger

	mu      sync.Mutex
	outputs map[string]*virtualDevice
}

// NewEvdev creates an evdev source.
func NewEvdev(cfg EvdevConfig, log *logging.Logger) (*Evdev, error) {
	if log == nil {
		log = logging.Nop()
	}
	return &Evdev{
		cfg:     cfg,
		log:     log,
		outputs: make(map[string]*virtualDevice),
	}, nil
}

// Name returns "evdev".
func (s *Evdev) Name() string {
	return "evdev"
}

// Run reads every configured device until ctx is cancelled.
func (s *Evdev) Run(ctx context.Context, sink Sink) error {
	paths := s.cfg.Paths
	if len(paths) == 0 {
		var err error
		if paths, err = discoverKeyDevices(); err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		return ErrNoDevices
	}

	p := pool.New().WithContext(ctx)
	for _, path := range paths {
		path := path
		p.Go(func(ctx context.Context) error {
			return s.runDevice(ctx, path, sink)
		})
	}
	return p.Wait()
}

// ImitateKeyPress writes a press and release of ev's key to the virtual
// device of the device it came from. Without grabbing there is nothing to
// imitate: the original event already reached the system.
func (s *Evdev) ImitateKeyPress(ev detect.KeyEvent) {
	code, ok := LinuxKeyCode(ev.KeyCode)
	if !ok {
		s.log.Debug("no linux key for %s", ev)
		return
	}

	s.mu.Lock()
	out := s.outputs[ev.Descriptor]
	s.mu.Unlock()
	if out == nil {
		return
	}

	if err := out.write(evdev.EvCode(code), 1); err != nil {
		s.log.WithError(err).Warn("imitating %s", ev)
		return
	}
	if err := out.write(evdev.EvCode(code), 0); err != nil {
		s.log.WithError(err).Warn("imitating %s", ev)
	}
}

func (s *Evdev) runDevice(ctx context.Context, path string, sink Sink) error {
	dev, err := evdev.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	info := describe(dev, path)
	log := s.log.WithField("device", info.name)

	var out *virtualDevice
	if s.cfg.Grab {
		if out, err = s.grab(dev, info); err != nil {
			dev.Close()
			return err
		}
		defer s.release(info, out)
	}

	// Closing the device unblocks ReadOne.
	stop := context.AfterFunc(ctx, func() { dev.Close() })
	defer func() {
		if stop() {
			dev.Close()
		}
	}()

	log.Info("reading %s (external=%v, grab=%v)", path, info.external, out != nil)

	for {
		raw, err := dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if raw.Type != evdev.EV_KEY {
			continue
		}

		consumed := sink.OnKeyEvent(info.keyEvent(raw))
		if out != nil && !consumed {
			if err := out.write(raw.Code, raw.Value); err != nil {
				log.WithError(err).Warn("forwarding %s", raw.CodeName())
			}
		}
	}
}

func (s *Evdev) grab(dev *evdev.InputDevice, info deviceInfo) (*virtualDevice, error) {
	if err := dev.Grab(); err != nil {
		return nil, fmt.Errorf("grabbing %s: %w", info.path, err)
	}
	clone, err := evdev.CloneDevice("keymapper "+info.name, dev)
	if err != nil {
		_ = dev.Ungrab()
		return nil, fmt.Errorf("cloning %s: %w", info.path, err)
	}

	out := &virtualDevice{dev: clone}
	s.mu.Lock()
	// Built-in devices share the empty descriptor; the first one imitates.
	if _, ok := s.outputs[info.descriptor]; !ok {
		s.outputs[info.descriptor] = out
	}
	s.mu.Unlock()
	return out, nil
}

func (s *Evdev) release(info deviceInfo, out *virtualDevice) {
	s.mu.Lock()
	if s.outputs[info.descriptor] == out {
		delete(s.outputs, info.descriptor)
	}
	s.mu.Unlock()
	out.close()
}

// virtualDevice serializes writes to a uinput clone so that each event is
// followed by its own SYN_REPORT.
type virtualDevice struct {
	mu  sync.Mutex
	dev *evdev.InputDevice
}

func (v *virtualDevice) write(code evdev.EvCode, value int32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: value}); err != nil {
		return err
	}
	return v.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
}

func (v *virtualDevice) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	_ = v.dev.Close()
}

type deviceInfo struct {
	path       string
	name       string
	descriptor string
	external   bool
}

func describe(dev *evdev.InputDevice, path string) deviceInfo {
	info := deviceInfo{path: path, name: path}
	if name, err := dev.Name(); err == nil && name != "" {
		info.name = name
	}
	if id, err := dev.InputID(); err == nil {
		info.external = id.BusType == busUSB || id.BusType == busBluetooth
	}
	if !info.external {
		return info
	}

	// External devices are told apart by a stable descriptor.
	switch {
	case uniqueID(dev) != "":
		info.descriptor = uniqueID(dev)
	case physical(dev) != "":
		info.descriptor = physical(dev)
	default:
		info.descriptor = path
	}
	return info
}

func uniqueID(dev *evdev.InputDevice) string {
	id, err := dev.UniqueID()
	if err != nil {
		return ""
	}
	return id
}

func physical(dev *evdev.InputDevice) string {
	phys, err := dev.PhysicalLocation()
	if err != nil {
		return ""
	}
	return phys
}

func (d deviceInfo) keyEvent(raw *evdev.InputEvent) detect.KeyEvent {
	code, _ := AndroidKeyCode(uint16(raw.Code))
	action := detect.KeyDown
	if raw.Value == 0 {
		action = detect.KeyUp
	}
	return detect.KeyEvent{
		KeyCode:    code,
		Action:     action,
		Descriptor: d.descriptor,
		IsExternal: d.external,
		Repeat:     raw.Value == 2,
		ScanCode:   int(raw.Code),
		DeviceName: d.name,
	}
}

// discoverKeyDevices returns the devices that report at least one key
// with an Android equivalent.
func discoverKeyDevices() ([]string, error) {
	inputs, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var paths []string
	for _, in := range inputs {
		dev, err := evdev.Open(in.Path)
		if err != nil {
			continue
		}
		if slices.Contains(dev.CapableTypes(), evdev.EV_KEY) {
			for _, code := range dev.CapableEvents(evdev.EV_KEY) {
				if _, ok := AndroidKeyCode(uint16(code)); ok {
					paths = append(paths, in.Path)
					break
				}
			}
		}
		dev.Close()
	}
	if len(paths) == 0 {
		return nil, ErrNoDevices
	}
	return paths, nil
}

var (
	_ Source             = (*Evdev)(nil)
	_ detect.KeyImitator = (*Evdev)(nil)
)
