package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// Typed environment lookups.  A value that does not parse falls back to
// the default, the same as an unset one.

func envStr(k, d string) string {
    if v := strings.TrimSpace(os.Getenv(k)); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k)))
    if err != nil {
        switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
        case "yes", "on":
            return true
        case "no", "off":
            return false
        }
        return d
    }
    return v
}

func envInt(k string, d int) int {
    n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
    if err != nil {
        return d
    }
    return n
}

func envDur(k string, d time.Duration) time.Duration {
    dur, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
    if err != nil {
        return d
    }
    return dur
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func firstNonEmpty(vals ...string) string {
    for _, v := range vals {
        if v != "" {
            return v
        }
    }
    return ""
}
