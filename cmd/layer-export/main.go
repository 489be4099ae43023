package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"

	"park-puls/internal/config"
	"park-puls/internal/gpkg"
	"park-puls/internal/logger"
	"park-puls/internal/parks"
	"park-puls/internal/theme"
)

// 文档注释：导出简化后的 WGS84 图层
// 背景：前端离线包与 QGIS 校对需要与服务端一致的几何；按扩展名输出 GeoPackage 或 GeoJSON。
// 约束：LAYER_EXPORT_THEME 非空时仅保留该主题的列（外加名称列）；额外写出 park_index、area_m2 与 geodesic_area_m2。
func main() {
	cfg, err := config.Load()
	l := logger.Setup()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	out := os.Getenv("LAYER_EXPORT_PATH")
	if out == "" {
		out = filepath.Join("data", "parks_wgs84.geojson")
	}
	ctx := context.Background()
	snap, err := parks.LoadSnapshot(ctx, parks.Options{Path: cfg.LayerPath, Layer: cfg.LayerName, Tolerance: cfg.SimplifyTolerance})
	if err != nil {
		l.Error("layer_load_error", "path", cfg.LayerPath, "err", err)
		os.Exit(1)
	}
	cols := snap.Columns
	if name := os.Getenv("LAYER_EXPORT_THEME"); name != "" {
		themes, err := theme.Load(cfg.ThemesPath, cfg.Profile)
		if err != nil {
			l.Error("themes_error", "path", cfg.ThemesPath, "err", err)
			os.Exit(1)
		}
		cols, err = themes.Filter(name, snap.Columns)
		if err != nil {
			l.Error("theme_unknown", "theme", name)
			os.Exit(1)
		}
		cols = withColumn(cols, themes.NameColumn, snap.Columns)
	}

	if strings.EqualFold(filepath.Ext(out), ".gpkg") {
		err = writeGeoPackage(ctx, out, snap, cols)
	} else {
		err = writeGeoJSON(out, snap, cols)
	}
	if err != nil {
		l.Error("layer_export_error", "path", out, "err", err)
		os.Exit(1)
	}
	l.Info("layer_export_done", "path", out, "parks", len(snap.Parks), "columns", len(cols))
}

// withColumn：col 存在于图层且尚未选中时追加到首位
func withColumn(cols []string, col string, available []string) []string {
	for _, c := range cols {
		if c == col {
			return cols
		}
	}
	for _, c := range available {
		if c == col {
			return append([]string{col}, cols...)
		}
	}
	return cols
}

func writeGeoPackage(ctx context.Context, path string, snap *parks.Snapshot, cols []string) error {
	lyr := &gpkg.Layer{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SRSID:   4326,
		Columns: append(append([]string(nil), cols...), "park_index", "area_m2", "geodesic_area_m2"),
	}
	for i := range snap.Parks {
		p := &snap.Parks[i]
		vals := make([]any, 0, len(cols)+3)
		for _, c := range cols {
			vals = append(vals, p.Attrs[c])
		}
		vals = append(vals, int64(p.Index), p.AreaM2, p.GeodesicAreaM2)
		lyr.Features = append(lyr.Features, gpkg.Feature{FID: int64(p.Index) + 1, Geometry: p.Geometry, Values: vals})
	}
	return gpkg.WriteLayer(ctx, path, lyr)
}

func writeGeoJSON(path string, snap *parks.Snapshot, cols []string) error {
	fc := geojson.NewFeatureCollection()
	for i := range snap.Parks {
		p := &snap.Parks[i]
		f := geojson.NewFeature(p.Geometry)
		for _, c := range cols {
			f.Properties[c] = p.Attrs[c]
		}
		f.Properties["park_index"] = p.Index
		f.Properties["area_m2"] = p.AreaM2
		f.Properties["geodesic_area_m2"] = p.GeodesicAreaM2
		fc.Append(f)
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
