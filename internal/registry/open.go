package registry

import (
	"fmt"
)

// Store drivers.
const (
	DriverMemory     = "memory"
	DriverSQL        = "sql"
	DriverKubernetes = "kubernetes"
)

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverMemory, DriverSQL, DriverKubernetes}
}

// Options selects and configures a Store.
type Options struct {
	Driver string

	// DSN is a SQLite file path or a PostgreSQL DSN (sql driver).
	DSN string

	// Namespace, Kubeconfig, and Context configure the kubernetes driver.
	Namespace  string
	Kubeconfig string
	Context    string
}

// Open creates the Store named by opts.Driver. An empty driver is memory.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQL:
		return OpenSQL(opts.DSN)
	case DriverKubernetes:
		client, err := NewKubeClient(KubeOptions{Kubeconfig: opts.Kubeconfig, Context: opts.Context})
		if err != nil {
			return nil, err
		}
		return NewKubeStore(client, opts.Namespace), nil
	default:
		return nil, fmt.Errorf("unknown registry driver %q (want one of %v)", opts.Driver, Drivers())
	}
}
