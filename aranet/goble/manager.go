// Package goble implements the aranet transport on top of go-ble's Linux
// HCI stack.
package goble

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
)

const sysfsBluetooth = "/sys/class/bluetooth"

type Manager struct {
	ConnectTimeout time.Duration

	// overridable in tests
	sysfsRoot string
}

func NewManager(connectTimeout time.Duration) *Manager {
	return &Manager{ConnectTimeout: connectTimeout, sysfsRoot: sysfsBluetooth}
}

// Adapters lists the HCI controllers known to the kernel, lowest index
// first. Controllers are only opened when a scan starts.
func (m *Manager) Adapters(ctx context.Context) ([]aranet.Adapter, error) {
	ids, err := hciDeviceIDs(m.sysfsRoot)
	if err != nil {
		return nil, err
	}
	adapters := make([]aranet.Adapter, 0, len(ids))
	for _, id := range ids {
		adapters = append(adapters, &Adapter{ID: id, ConnectTimeout: m.ConnectTimeout})
	}
	log.Debugf("found %d bluetooth adapter(s)", len(adapters))
	return adapters, nil
}

func hciDeviceIDs(root string) ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(root, "hci*"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list hci devices")
	}
	var ids []int
	for _, match := range matches {
		name := filepath.Base(match)
		// skip virtual entries like hci0:12 for connections
		id, err := strconv.Atoi(strings.TrimPrefix(name, "hci"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
