package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/world")
}

func memoriesCmd(args []string) {
	fs := flag.NewFlagSet("memories", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	agent := fs.String("agent", "", "agent id")
	query := fs.String("q", "", "query text")
	limit := fs.Int("limit", 0, "max memories (0: server default)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*agent) == "" {
		fmt.Fprintln(os.Stderr, "missing -agent")
		os.Exit(2)
	}
	q := url.Values{}
	q.Set("agent", *agent)
	q.Set("q", *query)
	if *limit > 0 {
		q.Set("limit", fmt.Sprint(*limit))
	}
	getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/memories?" + q.Encode())
}

func getAndPrint(u string) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
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
