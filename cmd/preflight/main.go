// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hamed0406/alarmwatch/internal/notify"
)

type report struct {
	out, err io.Writer
	failed   bool
}

func (r *report) fail(msg string) {
	fmt.Fprintln(r.err, "✖", msg)
	r.failed = true
}

func (r *report) warn(msg string) { fmt.Fprintln(r.err, "⚠", msg) }
func (r *report) ok(msg string)   { fmt.Fprintln(r.out, "✔", msg) }

func main() {
	_ = godotenv.Load()
	r := &report{out: os.Stdout, err: os.Stderr}
	check(r, os.Getenv)
	if r.failed {
		os.Exit(1)
	}
	r.ok("preflight passed")
}

func check(r *report, env func(string) string) {
	get := func(k string) string { return strings.TrimSpace(env(k)) }

	for _, k := range []string{"API_ADDR", "CONTROL_ADDR"} {
		v := get(k)
		if v == "" {
			r.warn(k + " is empty; the built-in default will be used.")
			continue
		}
		if _, _, err := net.SplitHostPort(v); err != nil {
			r.fail(k + " is not host:port: " + v)
			continue
		}
		r.ok(k + "=" + v)
	}

	for _, k := range []string{"API_BASE", "APP_URL", "SOUND_URL"} {
		v := get(k)
		if v == "" {
			r.warn(k + " is empty; derived default will be used.")
			continue
		}
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			r.fail(k + " must be an http(s) URL: " + v)
			continue
		}
		r.ok(k + "=" + v)
	}

	switch db := get("DATABASE_URL"); {
	case db == "":
		r.warn("DATABASE_URL empty; API will use in-memory stores and lose alarms on restart.")
	case strings.HasPrefix(db, "postgres://"), strings.HasPrefix(db, "postgresql://"):
		r.ok("DATABASE_URL present (postgres)")
	case strings.HasPrefix(db, "sqlite:"), strings.HasSuffix(db, ".db"), strings.HasSuffix(db, ".sqlite"):
		r.ok("DATABASE_URL present (sqlite)")
	default:
		r.fail("DATABASE_URL has an unsupported scheme.")
	}

	if allowed := get("ALLOWED_ORIGINS"); allowed == "" {
		r.warn("ALLOWED_ORIGINS empty; every origin is allowed.")
	} else {
		if strings.Contains(allowed, " ") {
			r.warn("ALLOWED_ORIGINS contains spaces; use comma-separated with no spaces, e.g. a,b")
		}
		r.ok("ALLOWED_ORIGINS=" + allowed)
	}

	switch p := strings.ToLower(get("NOTIFY_PERMISSION")); p {
	case "", "prompt":
		r.ok("NOTIFY_PERMISSION=prompt (asks on the terminal)")
	case string(notify.Granted), string(notify.Default):
		r.ok("NOTIFY_PERMISSION=" + p)
	case string(notify.Denied):
		r.warn("NOTIFY_PERMISSION=denied; alarms will never notify.")
	default:
		r.fail("NOTIFY_PERMISSION must be granted, denied, default or prompt.")
	}

	switch b := strings.ToLower(get("SOUND_BACKEND")); b {
	case "", "oto", "beep":
		r.ok("SOUND_BACKEND=" + b)
	case "none", "off":
		r.warn("SOUND_BACKEND=" + b + "; alarms are silent.")
	default:
		r.fail("SOUND_BACKEND must be oto, beep or none.")
	}
}
