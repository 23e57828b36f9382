// Package utils holds small helpers shared by config, jobs and the CLI.
package utils

import "strings"

// ParseList splits a comma-separated list such as "AAPL, TSLA,^IRX" into
// trimmed values, dropping blanks and repeats while keeping first-seen order.
// Returns nil when nothing remains.
func ParseList(s string) []string {
	var result []string
	seen := make(map[string]bool)
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
