// Package buildinfo carries version data stamped at link time with
// -ldflags "-X optiguide/internal/buildinfo.Version=...".
package buildinfo

import (
    "fmt"
    "runtime/debug"
)

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// commit falls back to the VCS revision the toolchain embedded.
func commit() string {
    if Commit != "" { return Commit }
    if bi, ok := debug.ReadBuildInfo(); ok {
        for _, s := range bi.Settings {
            if s.Key == "vcs.revision" { return s.Value }
        }
    }
    return ""
}

func Info() map[string]string {
    return map[string]string{
        "version": Version,
        "commit":  commit(),
        "builtAt": BuiltAt,
    }
}

func String() string {
    c := commit()
    if len(c) > 12 { c = c[:12] }
    if c == "" { c = "unknown" }
    return fmt.Sprintf("optiguide %s (%s)", Version, c)
}
