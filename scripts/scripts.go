// Package scripts embeds the bundled Risor report scripts.
package scripts

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed report/*.risor
var FS embed.FS

// Reports returns the names of the bundled report scripts, sorted.
func Reports() []string {
	entries, err := fs.ReadDir(FS, "report")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".risor") {
			names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
		}
	}
	sort.Strings(names)
	return names
}
