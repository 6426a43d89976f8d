package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zheng/pyflow/internal/export"
	"github.com/zheng/pyflow/internal/flow"
	"github.com/zheng/pyflow/internal/storage"
	"github.com/zheng/pyflow/internal/telemetry"
)

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openDB() (*storage.DB, error) {
	db, err := storage.Open(cfg.Storage.DB)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	return db, nil
}

// findRun looks a run up by ID or ID prefix, then as the target of the
// latest run rendered for it.
func findRun(db *storage.DB, ref string) (*storage.Run, error) {
	run, err := db.GetRun(ref)
	if errors.Is(err, storage.ErrRunNotFound) {
		if latest, lerr := db.LatestRunFor(ref); lerr == nil {
			return latest, nil
		}
	}
	return run, err
}

func newPipeline(metrics *telemetry.Metrics) *flow.Pipeline {
	return flow.New(logger, flow.WithMetrics(metrics))
}

// searchPaths merges --root with the configured search paths.
func searchPaths(roots []string) []string {
	paths := append([]string(nil), roots...)
	paths = append(paths, cfg.Project.SearchPaths...)
	if len(paths) == 0 && cfg.Project.Root != "" && cfg.Project.Root != "." {
		paths = append(paths, cfg.Project.Root)
	}
	return paths
}

// stopList splits comma separated --stop values and adds the configured ones.
func stopList(values []string) []string {
	stops := append([]string(nil), cfg.Flow.StopFunctions...)
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				stops = append(stops, s)
			}
		}
	}
	return stops
}

// outputFile names the artifact for one rendered entry: <dir>/<entry>.<format>.
// The entry is module-qualified and keeps its dots, so app.Service.run
// renders to app.Service.run.pdf and entries of different modules never
// collide.
func outputFile(dir, entry string, format export.Format) string {
	ext := string(format)
	switch format {
	case export.FormatOutline:
		ext = "txt"
	case export.FormatMermaid:
		ext = "mmd"
	}
	return filepath.Join(dir, entry+"."+ext)
}

func exportOptions(format export.Format) export.ExportOptions {
	opts := export.DefaultExportOptions()
	opts.Format = format
	opts.Direction = cfg.Flow.Direction
	opts.DotBinary = cfg.Output.DotBinary
	return opts
}
