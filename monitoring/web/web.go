// Package web holds the dashboard served by the monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
)

// AssetsDirEnv names a directory that replaces the embedded dashboard, so
// the page can be edited without rebuilding.
const AssetsDirEnv = "DPLINK_MONITOR_ASSETS"

//go:embed dist/*
var staticAssets embed.FS

// Assets returns the dashboard files. A non-empty dir is served from disk.
func Assets(dir string) http.FileSystem {
	if dir != "" {
		return http.Dir(dir)
	}

	sub, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

// Handler serves the dashboard from the directory named by AssetsDirEnv, or
// from the embedded copy when the variable is unset. Files read from disk
// are never cached by the browser.
func Handler() http.Handler {
	dir := os.Getenv(AssetsDirEnv)
	files := http.FileServer(Assets(dir))

	if dir == "" {
		return files
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, r)
	})
}
