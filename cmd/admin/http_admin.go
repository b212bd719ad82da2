package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	callAdmin(http.MethodGet, *baseURL, "/admin/v1/state", nil, 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	callAdmin(http.MethodPost, *baseURL, "/admin/v1/snapshot", nil, 10*time.Second)
}

func reloadCmd(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	callAdmin(http.MethodPost, *baseURL, "/admin/v1/reload", nil, 10*time.Second)
}

// replenCmd runs one replenish request: admin replen [-url U] <kind> <amount> [oretype]
func replenCmd(args []string) {
	fs := flag.NewFlagSet("replen", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	body, err := replenBody(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: admin replen [-url URL] <kind> <amount> [oretype]")
		os.Exit(2)
	}
	callAdmin(http.MethodPost, *baseURL, "/admin/v1/replen", body, 2*time.Minute)
}

func replenBody(args []string) ([]byte, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("missing kind or amount")
	}
	amount, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("bad amount %q", args[1])
	}
	req := struct {
		Kind    string `json:"kind"`
		Amount  int    `json:"amount"`
		Subtype string `json:"subtype,omitempty"`
	}{Kind: args[0], Amount: amount}
	if len(args) > 2 {
		req.Subtype = args[2]
	}
	return json.Marshal(req)
}

func runsCmd(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	callAdmin(http.MethodGet, *baseURL, "/admin/v1/runs?limit="+strconv.Itoa(*limit), nil, 5*time.Second)
}

func callAdmin(method, baseURL, path string, body []byte, timeout time.Duration) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
