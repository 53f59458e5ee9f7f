package storage_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/typefind/internal/storage"
)

// Example_createSchema demonstrates creating the graph schema on a fresh
// database.
func Example_createSchema() {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	version, err := storage.GetSchemaVersion(db)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Before: %s\n", version)

	if err := storage.CreateSchema(db); err != nil {
		log.Fatal(err)
	}

	version, err = storage.GetSchemaVersion(db)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("After: %s\n", version)

	// Output:
	// Before: 0
	// After: 1.0
}

// Example_hierarchy demonstrates recording inheritance and auditing the
// closure it produces.
func Example_hierarchy() {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := storage.Open(storage.Options{Path: storage.MemoryPath, Logger: logger})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ids := make(map[string]int64)
	for _, name := range []string{"Base", "Middle", "Leaf"} {
		id, _, err := store.Resolver().Decl(name)
		if err != nil {
			log.Fatal(err)
		}
		ids[name] = id
	}

	// Parents first, as a front-end visiting in source order would.
	edges := []storage.BaseEdge{
		{Child: ids["Middle"], Parent: ids["Base"], Access: "public"},
		{Child: ids["Leaf"], Parent: ids["Middle"], Access: "public"},
	}
	for _, e := range edges {
		if err := store.Hierarchy().AddBaseEdge(e); err != nil {
			log.Fatal(err)
		}
	}

	report, err := storage.AuditClosure(context.Background(), storage.NewReader(store.DB()))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("edges=%d rows=%d complete=%t\n", report.Edges, report.Rows, report.Complete)

	// Output:
	// edges=2 rows=3 complete=true
}
