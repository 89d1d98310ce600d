package observability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// textfileDirPerm restricts metric drop directories to owner and group.
const textfileDirPerm = 0o750

// ErrNoRegistry is returned when textfile export is requested on providers
// built without a metrics registry.
var ErrNoRegistry = errors.New("observability: no metrics registry")

// WriteTextfile dumps every gathered metric to path in Prometheus text
// exposition format, creating parent directories as needed. The underlying
// write is atomic (temp file plus rename), so a node_exporter textfile
// collector never scrapes partial output from a cron run.
func (p Providers) WriteTextfile(path string) error {
	if p.Registry == nil {
		return ErrNoRegistry
	}

	mkErr := os.MkdirAll(filepath.Dir(path), textfileDirPerm)
	if mkErr != nil {
		return fmt.Errorf("create textfile dir: %w", mkErr)
	}

	writeErr := prometheus.WriteToTextfile(path, p.Registry)
	if writeErr != nil {
		return fmt.Errorf("write metrics textfile: %w", writeErr)
	}

	return nil
}
