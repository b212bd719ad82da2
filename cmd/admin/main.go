package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"replenisher/internal/persistence/snapshot"
	"replenisher/internal/replenish"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "replen":
			replenCmd(os.Args[2:])
			return
		case "reload":
			reloadCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "runs":
			runsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "logs":
			logsCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// logsCmd prints run records from the rotated JSONL logs, oldest first.
func logsCmd(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	kind := fs.String("kind", "", "only runs of this kind (optional)")
	since := fs.Duration("since", 0, "only runs started within this window (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	f := runFilter{}
	if k := strings.TrimSpace(*kind); k != "" {
		parsed, err := replenish.ParseKind(k)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -kind:", err)
			os.Exit(2)
		}
		f.kind = parsed
	}
	if *since > 0 {
		f.since = time.Now().Add(-*since)
	}

	recs, err := readRuns(filepath.Join(*dataDir, "worlds", *worldID), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read runs:", err)
		os.Exit(1)
	}
	for _, r := range recs {
		printJSON(r)
	}
}

type runFilter struct {
	kind  replenish.Kind
	since time.Time
}

func (f runFilter) match(r replenish.Record) bool {
	if f.kind != "" && r.Request.Kind != f.kind {
		return false
	}
	if !f.since.IsZero() && r.StartedAt.Before(f.since) {
		return false
	}
	return true
}

func readRuns(worldDir string, f runFilter) ([]replenish.Record, error) {
	dir := filepath.Join(worldDir, "runs")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "runs-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []replenish.Record
	for _, name := range names {
		recs, err := readRunFile(filepath.Join(dir, name), f)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func readRunFile(path string, f runFilter) ([]replenish.Record, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	dec, err := zstd.NewReader(fh)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []replenish.Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var r replenish.Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if f.match(r) {
			out = append(out, r)
		}
	}
	// The current hour's file is still open on the server; its last frame
	// has no end marker yet.
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// inspectCmd prints a snapshot header without decoding the tile body.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (used when -snapshot is empty)")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	full := fs.Bool("full", false, "decode the whole snapshot and print chest and region counts")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		path = latestSnapshot(filepath.Join(*dataDir, "worlds", *worldID))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found")
		os.Exit(2)
	}

	if !*full {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read header:", err)
			os.Exit(1)
		}
		printJSON(struct {
			Path string `json:"path"`
			snapshot.Header
		}{path, h})
		return
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(struct {
		Path    string          `json:"path"`
		Header  snapshot.Header `json:"header"`
		Seed    int64           `json:"seed"`
		Width   int             `json:"width"`
		Height  int             `json:"height"`
		Chests  int             `json:"chests"`
		Regions int             `json:"regions"`
	}{path, snap.Header, snap.Seed, snap.Width, snap.Height, len(snap.Chests), len(snap.Regions)})
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestAt int64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		at, err := strconv.ParseInt(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || at > bestAt {
			bestAt = at
			best = filepath.Join(dir, name)
		}
	}
	return best
}
