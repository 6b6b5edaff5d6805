// Command auditload drives a buflog.Manager with a configurable number of
// concurrent producers writing fixed-size records, reporting throughput
// and error counts. It exercises the same back-pressure and durability
// paths production producers would hit, without needing a real audited
// subsystem in front of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corelog/auditbuf/buflog"
	"github.com/corelog/auditbuf/internal/sink"
)

func main() {
	logPath := flag.String("log-file", "loadtest.log", "path to the log file to write")
	capacity := flag.Int("buffer-capacity", 65536, "buffer capacity in bytes")
	fullDurability := flag.Bool("full-durability", false, "run in full-durability mode")
	producers := flag.Int("producers", 8, "number of concurrent producer goroutines")
	recordsEach := flag.Int("records", 1000, "records written by each producer")
	recordSize := flag.Int("record-size", 128, "size in bytes of each record")
	flag.Parse()

	f, err := sink.OpenFile(*logPath)
	if err != nil {
		fmt.Printf("auditload: failed to open %s: %v\n", *logPath, err)
		return
	}
	defer f.Close()

	mgr := buflog.NewManager(*capacity, buflog.WithFullDurability(*fullDurability))
	mgr.SetSink(f)
	mgr.Start()
	defer mgr.Stop()

	record := make([]byte, *recordSize)
	for i := range record {
		record[i] = byte('a' + i%26)
	}

	start := time.Now()
	var g errgroup.Group
	for p := 0; p < *producers; p++ {
		g.Go(func() error {
			for i := 0; i < *recordsEach; i++ {
				if err := mgr.Write(context.Background(), record); err != nil {
					return fmt.Errorf("producer write: %w", err)
				}
			}
			return nil
		})
	}

	err = g.Wait()
	elapsed := time.Since(start)

	total := *producers * *recordsEach
	fmt.Println("=== auditload results ===")
	fmt.Printf("records:       %d\n", total)
	fmt.Printf("duration:      %v\n", elapsed)
	fmt.Printf("throughput:    %.0f records/sec\n", float64(total)/elapsed.Seconds())
	if err != nil {
		fmt.Printf("error:         %v\n", err)
	}
}
