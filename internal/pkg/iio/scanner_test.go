package iio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

// fakeSysfs lays out devices the way the kernel does: the real device directory lives under
// /sys/devices/<bus>/<device-name>/iio:deviceN and /sys/bus/iio/devices holds symlinks to it.
func fakeSysfs(t *testing.T, devices map[string][]string) string {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "bus", "iio", "devices")
	require.NoError(t, os.MkdirAll(root, 0o755))

	i := 0
	for deviceName, files := range devices {
		iioName := "iio:device" + string(rune('0'+i))
		i++
		devDir := filepath.Join(base, "devices", "platform", "i2c", deviceName, iioName)
		require.NoError(t, os.MkdirAll(devDir, 0o755))
		for _, f := range files {
			require.NoError(t, os.WriteFile(filepath.Join(devDir, f), []byte("21000\n"), 0o644))
		}
		// a link back up the tree that must not be followed
		require.NoError(t, os.Symlink(root, filepath.Join(devDir, "subsystem")))
		require.NoError(t, os.Symlink(devDir, filepath.Join(root, iioName)))
	}
	return root
}

func TestScanner_FindFiles(t *testing.T) {
	root := fakeSysfs(t, map[string][]string{
		"7-0076": {"in_temp_input", "in_pressure_input", "name", "in_temp_scale"},
		"3-0040": {"in_humidity_raw", "in_temp1_raw"},
	})

	paths, err := NewScanner(root).FindFiles()
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Len(t, names, 4)
	// temperature first, then pressure, then humidity
	assert.Equal(t, []string{"in_pressure_input", "in_humidity_raw"}, names[2:])
	assert.ElementsMatch(t, []string{"in_temp_input", "in_temp1_raw"}, names[:2])
}

func TestScanner_FindFiles_Empty(t *testing.T) {
	paths, err := NewScanner(t.TempDir()).FindFiles()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestScanner_FindFiles_MissingRoot(t *testing.T) {
	paths, err := NewScanner(filepath.Join(t.TempDir(), "missing")).FindFiles()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestScanner_FindFiles_UnreadableRoot(t *testing.T) {
	// a regular file where the root directory should be
	root := filepath.Join(t.TempDir(), "devices")
	require.NoError(t, os.WriteFile(root, nil, 0o644))
	_, err := NewScanner(root).FindFiles()
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	root := fakeSysfs(t, map[string][]string{
		"7-0076":  {"in_temp_input", "in_pressure_input"},
		"bad0040": {"in_humidity_raw"},
	})
	paths, err := NewScanner(root).FindFiles()
	require.NoError(t, err)
	require.Len(t, paths, 3)

	temp, err := Resolve(paths[0])
	require.NoError(t, err)
	assert.Equal(t, model.Device{
		Path:     paths[0],
		Kind:     model.KindTemperature,
		Name:     "7-0076",
		Identity: model.Identity{Bus: 7, Address: 0x76},
	}, temp)

	pressure, err := Resolve(paths[1])
	require.NoError(t, err)
	assert.Equal(t, model.KindPressure, pressure.Kind)

	bad, err := Resolve(paths[2])
	assert.ErrorIs(t, err, ErrBadDeviceName)
	assert.Equal(t, "bad0040", bad.Name)
}

func TestKindFromPath(t *testing.T) {
	tests := map[string]struct {
		path string
		want model.Kind
	}{
		"temperature": {path: "/sys/bus/iio/devices/iio:device0/in_temp_input", want: model.KindTemperature},
		"pressure":    {path: "/sys/bus/iio/devices/iio:device0/in_pressure_raw", want: model.KindPressure},
		"humidity":    {path: "/sys/bus/iio/devices/iio:device1/in_humidity_raw", want: model.KindHumidity},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindFromPath(tt.path))
		})
	}
}

func TestChannelLabel(t *testing.T) {
	assert.Equal(t, "temp", ChannelLabel("/x/in_temp_input"))
	assert.Equal(t, "temp1", ChannelLabel("/x/in_temp1_raw"))
	assert.Equal(t, "pressure", ChannelLabel("in_pressure_input"))
}
