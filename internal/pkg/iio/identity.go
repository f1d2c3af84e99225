package iio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

var ErrBadDeviceName = errors.New("bad device name")

// Resolve builds the discovered device for an endpoint path.
func Resolve(path string) (model.Device, error) {
	id, name, err := ResolveIdentity(path)
	if err != nil {
		return model.Device{Path: path, Name: name}, err
	}
	return model.Device{
		Path:     path,
		Kind:     KindFromPath(path),
		Name:     name,
		Identity: id,
	}, nil
}

// ResolveIdentity resolves the device owning an endpoint path. The endpoint directory is
// something like /sys/bus/iio/devices/iio:device0, a symlink to
// /sys/devices/<platform i2c>/7-0076/iio:device0, whose parent names the device.
func ResolveIdentity(path string) (model.Identity, string, error) {
	dir, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return model.Identity{}, "", err
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return model.Identity{}, "", err
	}
	name := filepath.Base(filepath.Dir(dir))
	id, err := ParseDeviceName(name)
	return id, name, err
}

// ParseDeviceName parses <decimal bus>-<hex address>.
func ParseDeviceName(name string) (model.Identity, error) {
	busStr, addrStr, found := strings.Cut(name, "-")
	if !found {
		return model.Identity{}, fmt.Errorf("%w %q: missing hyphen", ErrBadDeviceName, name)
	}
	bus, err := strconv.ParseUint(busStr, 10, 64)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w %q: bus: %w", ErrBadDeviceName, name, err)
	}
	addr, err := strconv.ParseUint(addrStr, 16, 64)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w %q: address: %w", ErrBadDeviceName, name, err)
	}
	return model.Identity{Bus: bus, Address: addr}, nil
}
