package engine

import (
	"errors"
	"fmt"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Importer accepts documents under caller-chosen ids. The Engine implements
// it; imports preserve ids and timestamps instead of re-stamping.
type Importer interface {
	Put(collection, id string, fields map[string]any) error
}

// Migrate copies every collection from a source store into a destination
// engine. The source may be the embedded engine, a bound store, or the
// remote client, so this covers both local re-homing and remote backup.
func Migrate(src store.Reader, dst Importer) error {
	for _, collection := range Collections {
		snap, err := src.GetAll(store.NewQuery(collection))
		if errors.Is(err, store.ErrPermissionDenied) {
			// The source does not expose this collection to the copying
			// actor. Credentials behave this way on a bound source.
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to dump collection %s: %w", collection, err)
		}

		for _, doc := range snap {
			if err := dst.Put(collection, doc.ID, doc.Fields); err != nil {
				return fmt.Errorf("failed to import %s/%s: %w", collection, doc.ID, err)
			}
		}
	}

	return nil
}
