package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"

	"draftcrane-agent/internal/config"
	"draftcrane-agent/internal/draftstore"
)

// openStore builds the configured draft store. Durable backends are wrapped
// in the memory fallback so storage trouble degrades autosave instead of
// breaking it. A backend that is already unavailable at startup (missing
// directory, read-only disk, unreachable CouchDB) degrades the same way:
// the agent starts with memory-only drafts rather than refusing to run.
func openStore(cfg *config.Config) (draftstore.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		primary, err := draftstore.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return degradedStore(err)
		}
		return draftstore.NewFallback(primary), nil

	case "couch":
		client, err := kivik.New("couch", cfg.Store.CouchURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
		}
		if err := draftstore.EnsureCouchDB(context.Background(), client, cfg.Store.CouchDB); err != nil {
			return degradedStore(err)
		}
		return draftstore.NewFallback(draftstore.NewCouchStore(client, cfg.Store.CouchDB)), nil

	case "memory":
		return draftstore.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown draft store driver: %s", cfg.Store.Driver)
	}
}

func degradedStore(err error) (draftstore.Store, error) {
	if !errors.Is(err, draftstore.ErrUnavailable) {
		return nil, fmt.Errorf("failed to open draft store: %w", err)
	}
	log.Printf("draft storage unavailable at startup, running with memory-only drafts: %v", err)
	return draftstore.NewMemoryStore(), nil
}
