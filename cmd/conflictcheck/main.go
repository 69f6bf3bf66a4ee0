package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ldtran/home-inventory/internal/adapter/storage"
	"github.com/ldtran/home-inventory/internal/core/domain"
	"github.com/ldtran/home-inventory/internal/core/service"
)

// conflictcheck drives N concurrent writers that all hold the same
// observed version of one record. Exactly one must win; the rest must be
// rejected with a version conflict.
const (
	recordName    = "conflict-check-item"
	totalWriters  = 50
	startQuantity = 5
)

func main() {
	ctx := context.Background()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	// Clear previous run and seed the record
	db.ExecContext(ctx, `DELETE FROM inventory_records WHERE name = ?`, recordName)

	store := storage.NewMySQLStore(db)
	inventory := service.NewInventoryService(store, nil, log.Default())

	if err := inventory.Add(ctx, "", recordName, startQuantity, "seeded by conflictcheck"); err != nil {
		log.Fatalf("failed to seed record: %v", err)
	}

	// Every writer observed version 1
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalWriters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			err := inventory.UpdateQuantity(ctx, recordName, startQuantity+n, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrVersionConflict):
				conflictCount.Add(1)
			default:
				log.Printf("writer %d: unexpected error: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	conflict := conflictCount.Load()

	fmt.Println("========== CONFLICT CHECK RESULTS ==========")
	fmt.Printf("Writers:          %d\n", totalWriters)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Version conflict: %d\n", conflict)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("============================================")

	if success == 1 && conflict == int32(totalWriters-1) {
		fmt.Println("PASS: exactly one writer won the version")
	} else {
		fmt.Printf("FAIL: expected 1 success/%d conflicts, got %d/%d\n",
			totalWriters-1, success, conflict)
	}

	// The winner bumped the record to version 2
	coll, err := store.ReadAll(ctx)
	if err != nil {
		log.Fatalf("failed to read back: %v", err)
	}
	if i := coll.IndexOf(recordName); i >= 0 {
		fmt.Printf("Final record: quantity=%d version=%d\n", coll[i].Quantity, coll[i].Version)
		if coll[i].Version == 2 {
			fmt.Println("PASS: version advanced by exactly one")
		} else {
			fmt.Printf("FAIL: expected version 2, got %d\n", coll[i].Version)
		}
	}

	db.ExecContext(ctx, `DELETE FROM inventory_records WHERE name = ?`, recordName)
}
