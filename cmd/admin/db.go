package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd queries the run index directly, without a running server.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	kind := fs.String("kind", "", "kind filter (runs)")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "runs.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "runs":
		query := `SELECT run_id,run_trigger,kind,target,COALESCE(ore_subtype,''),attempted,succeeded,blocked,faults,swept,started_at,duration_ms,COALESCE(error,'') FROM runs ORDER BY started_at DESC LIMIT ?`
		qargs := []any{*limit}
		if k := strings.TrimSpace(*kind); k != "" {
			query = `SELECT run_id,run_trigger,kind,target,COALESCE(ore_subtype,''),attempted,succeeded,blocked,faults,swept,started_at,duration_ms,COALESCE(error,'') FROM runs WHERE kind=? ORDER BY started_at DESC LIMIT ?`
			qargs = []any{k, *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID      string `json:"run_id"`
				Trigger    string `json:"trigger"`
				Kind       string `json:"kind"`
				Target     int    `json:"target"`
				OreSubtype string `json:"ore_subtype,omitempty"`
				Attempted  int    `json:"attempted"`
				Succeeded  int    `json:"succeeded"`
				Blocked    int    `json:"blocked"`
				Faults     int    `json:"faults"`
				Swept      int    `json:"swept"`
				StartedAt  string `json:"started_at"`
				DurationMS int64  `json:"duration_ms"`
				Error      string `json:"error,omitempty"`
			}
			if err := rows.Scan(&r.RunID, &r.Trigger, &r.Kind, &r.Target, &r.OreSubtype, &r.Attempted, &r.Succeeded, &r.Blocked, &r.Faults, &r.Swept, &r.StartedAt, &r.DurationMS, &r.Error); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "kinds":
		rows, err := db.Query(`SELECT kind,COUNT(*),SUM(attempted),SUM(succeeded),SUM(blocked),SUM(faults),SUM(swept) FROM runs GROUP BY kind ORDER BY kind`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Kind      string `json:"kind"`
				Runs      int64  `json:"runs"`
				Attempted int64  `json:"attempted"`
				Succeeded int64  `json:"succeeded"`
				Blocked   int64  `json:"blocked"`
				Faults    int64  `json:"faults"`
				Swept     int64  `json:"swept"`
			}
			if err := rows.Scan(&r.Kind, &r.Runs, &r.Attempted, &r.Succeeded, &r.Blocked, &r.Faults, &r.Swept); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "snapshots":
		rows, err := db.Query(`SELECT path,world_id,saved_at,runs,chests FROM snapshots ORDER BY saved_at DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Path    string `json:"path"`
				WorldID string `json:"world_id"`
				SavedAt int64  `json:"saved_at"`
				Runs    int64  `json:"runs"`
				Chests  int    `json:"chests"`
			}
			if err := rows.Scan(&r.Path, &r.WorldID, &r.SavedAt, &r.Runs, &r.Chests); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-kind K] runs|kinds|snapshots")
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
