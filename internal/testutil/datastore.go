package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jbweber/homelab/ploi/internal/datastore"
)

// NewTestDSN generates a DSN for an in-memory SQLite database for testing purposes.
func NewTestDSN(testName string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(testName, "/", "_"))
}

// SetupTestDatastore creates a migrated in-memory cache store named after the
// test. The store is closed when the test finishes.
func SetupTestDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()

	ds, err := datastore.New(context.Background(), NewTestDSN(t.Name()))
	if err != nil {
		t.Fatalf("Failed to create test datastore: %v", err)
	}
	// one connection keeps the shared in-memory database alive and avoids
	// table locks between pooled connections
	ds.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { ds.Close() })
	return ds
}
