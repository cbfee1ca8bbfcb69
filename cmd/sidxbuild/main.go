// Command sidxbuild builds a secondary index file from a synthetic or
// CSV-sourced row stream, exercising pkg/sidx's full Builder pipeline end
// to end.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/tomatolog/columnar/internal/monitoring"
	"github.com/tomatolog/columnar/pkg/sidx"
)

func main() {
	out := flag.String("out", "", "output index file path (required)")
	csvPath := flag.String("csv", "", "CSV file to index (two columns per row: uint32 value, string label); if empty, generates synthetic data")
	rows := flag.Int("rows", 100_000, "number of synthetic rows to generate (ignored with -csv)")
	memLimit := flag.Int64("mem", 64<<20, "memory budget in bytes")
	collation := flag.String("collation", "binary", "string collation: binary, libc_cs, libc_ci, utf8_general_ci")
	pprofAddr := flag.String("pprof", "", "if set, start a pprof HTTP server at this address")
	flag.Parse()

	if *out == "" {
		fmt.Fprintln(os.Stderr, "sidxbuild: -out is required")
		os.Exit(1)
	}

	logger := sidx.NewDefaultLogger()

	if *pprofAddr != "" {
		srv, err := monitoring.StartPprofServer(*pprofAddr, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sidxbuild: failed to start pprof on %s: %v\n", *pprofAddr, err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = monitoring.StopPprofServer(ctx, srv)
			}()
			fmt.Printf("pprof listening on %s\n", *pprofAddr)
		}
	}

	sidx.InitCollations()
	coll, err := parseCollation(*collation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidxbuild: %v\n", err)
		os.Exit(1)
	}

	attrs := []sidx.SourceAttr{
		{SrcIndex: 0, Name: "value", Type: sidx.TypeUint32},
		{SrcIndex: 1, Name: "label", Type: sidx.TypeString},
	}

	builder, err := sidx.NewBuilder(&sidx.BuilderOptions{
		Path:        *out,
		Attrs:       attrs,
		MemoryLimit: *memLimit,
		Collation:   coll,
		Logger:      logger,
		Report:      true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidxbuild: create builder: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	var rowCount int
	if *csvPath != "" {
		rowCount, err = buildFromCSV(builder, *csvPath)
	} else {
		rowCount, err = buildSynthetic(builder, *rows)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidxbuild: %v\n", err)
		os.Exit(1)
	}

	if err := builder.Done(); err != nil {
		fmt.Fprintf(os.Stderr, "sidxbuild: done: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("indexed %d rows into %s in %v\n", rowCount, *out, time.Since(start))
}

func parseCollation(name string) (sidx.Collation, error) {
	switch name {
	case "binary":
		return sidx.CollationBinary, nil
	case "libc_cs":
		return sidx.CollationLibcCS, nil
	case "libc_ci":
		return sidx.CollationLibcCI, nil
	case "utf8_general_ci":
		return sidx.CollationUTF8GeneralCI, nil
	default:
		return 0, fmt.Errorf("unknown collation %q", name)
	}
}

func buildSynthetic(b *sidx.Builder, rows int) (int, error) {
	rng := rand.New(rand.NewSource(1))
	labels := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i := 0; i < rows; i++ {
		if err := b.SetRowID(uint32(i)); err != nil {
			return i, err
		}
		if err := b.SetUint32(0, uint32(rng.Intn(rows/10+1))); err != nil {
			return i, err
		}
		if err := b.SetString(1, []byte(labels[rng.Intn(len(labels))])); err != nil {
			return i, err
		}
	}
	return rows, nil
}

func buildFromCSV(b *sidx.Builder, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	rowID := 0
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if len(record) < 2 {
			continue
		}
		value, err := strconv.ParseUint(record[0], 10, 32)
		if err != nil {
			continue
		}
		if err := b.SetRowID(uint32(rowID)); err != nil {
			return rowID, err
		}
		if err := b.SetUint32(0, uint32(value)); err != nil {
			return rowID, err
		}
		if err := b.SetString(1, []byte(record[1])); err != nil {
			return rowID, err
		}
		rowID++
	}
	return rowID, nil
}
