package sdk

import (
	"os"

	"github.com/golang/glog"

	"github.com/gauciv/triji-app-admin-dashboard/internal/engine"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Open initializes a document store from the environment.
//
// When TRIJI_STORE_ADDR names a reachable daemon the remote client is
// returned; otherwise the embedded engine is started over dataDir. Callers
// get the store.DocumentStore interface either way and do not care which
// mode they run in.
func Open(dataDir string) (store.DocumentStore, store.Binder, error) {
	if addr := os.Getenv("TRIJI_STORE_ADDR"); addr != "" {
		client, err := Connect(addr)
		if err == nil {
			return client, nil, nil
		}
		glog.Warningf("remote store %s unavailable, falling back to embedded mode: %v", addr, err)
	}

	p, err := engine.NewPersistence(dataDir)
	if err != nil {
		return nil, nil, err
	}
	initial, err := p.LoadAll()
	if err != nil {
		return nil, nil, err
	}
	eng := engine.New(initial, p)
	return eng, eng, nil
}
