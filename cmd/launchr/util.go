package main

import (
	"encoding/json"
	"fmt"
)

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(b))
}
