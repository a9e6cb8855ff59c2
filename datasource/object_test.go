package datasource

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func mustParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestObjectStore(t *testing.T) Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&checkpointRow{}))

	client := NewFilesystemClient(t.TempDir())
	return NewObject(client, db)
}

func TestObject_Conformance(t *testing.T) {
	runConformanceSuite(t, func() Store {
		return newTestObjectStore(t)
	})
}

func TestObject_ObjectKeyIsLexicographicallySortable(t *testing.T) {
	require.Less(t,
		objectKey("src", "stream", mustParseTime("2026-01-01T00:00:00Z"), "batch-a"),
		objectKey("src", "stream", mustParseTime("2026-01-02T00:00:00Z"), "batch-b"),
	)
}
