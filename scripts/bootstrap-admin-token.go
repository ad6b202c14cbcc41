package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/offerdesk/tracker/internal/auth"
)

type output struct {
	Token string `json:"token"`
	Hash  string `json:"hash"`
}

func main() {
	format := flag.String("format", "plain", "Output format: plain, json or env")
	flag.Parse()

	generated, err := auth.GenerateAdminToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate admin token:", err)
		os.Exit(1)
	}

	out := output{Token: generated.Plaintext, Hash: generated.Hash}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
		fmt.Fprintln(os.Stderr, "ADMIN_TOKEN_HASH="+out.Hash)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	case "env":
		// Single quotes keep the $-separated PHC string intact in shells and .env files.
		fmt.Printf("ADMIN_TOKEN_HASH='%s'\n", out.Hash)
		fmt.Fprintln(os.Stderr, "admin token:", out.Token)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain, json or env")
		os.Exit(1)
	}
}
