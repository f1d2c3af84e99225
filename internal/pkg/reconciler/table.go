package reconciler

import (
	"maps"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

// Sensor is a constructed sensor owned by the table.
type Sensor interface {
	Name() string
	Info() model.SensorInfo
	StartReadLoop()
	Close() error
}

// Table maps sensor names to the single live sensor carrying that name. Writes happen on
// the engine goroutine; the lock lets readers such as the status API take snapshots.
type Table struct {
	mu      sync.RWMutex
	sensors map[string]Sensor
}

func NewTable() *Table {
	return &Table{sensors: map[string]Sensor{}}
}

func (t *Table) Get(name string) (Sensor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sensors[name]
	return s, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sensors)
}

// Snapshot returns the live sensors ordered by name.
func (t *Table) Snapshot() []Sensor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Map(slices.Sorted(maps.Keys(t.sensors)), func(name string, _ int) Sensor {
		return t.sensors[name]
	})
}

// Replace releases the sensor currently installed under name, then installs what build
// returns. Both happen under the write lock so no reader sees a half-replaced slot. When
// build fails the slot is left empty.
func (t *Table) Replace(name string, build func() (Sensor, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.sensors[name]; ok {
		delete(t.sensors, name)
		_ = old.Close()
	}
	s, err := build()
	if err != nil {
		return err
	}
	t.sensors[name] = s
	return nil
}

// CloseAll releases every sensor and empties the table.
func (t *Table) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, s := range t.sensors {
		_ = s.Close()
		delete(t.sensors, name)
	}
}
