package parks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"park-puls/internal/gpkg"
	"park-puls/internal/logger"
)

// goccy 编解码，供 orb/geojson 全局使用
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func init() {
	geojson.CustomJSONMarshaler = jsonCodec{}
	geojson.CustomJSONUnmarshaler = jsonCodec{}
}

// Options：图层加载参数
type Options struct {
	Path      string
	Layer     string
	Tolerance float64 // 简化容差（度），<=0 不简化
}

// 文档注释：加载公园图层并构建快照
// 背景：支持 GeoPackage（.gpkg）与 GeoJSON（.geojson/.json）；统一转换到 WGS84 并做 Douglas-Peucker 简化以减轻前端渲染压力。
// 约束：简化后外环退化的要素保留原几何，不因简化丢失小型公园；非面要素丢弃。
func LoadSnapshot(ctx context.Context, opt Options) (*Snapshot, error) {
	start := time.Now()
	var (
		columns []string
		feats   []Feature
		srs     int
		err     error
	)
	switch strings.ToLower(filepath.Ext(opt.Path)) {
	case ".gpkg":
		columns, feats, srs, err = readGeoPackage(ctx, opt.Path, opt.Layer)
	case ".geojson", ".json":
		columns, feats, srs, err = readGeoJSON(opt.Path)
	default:
		return nil, fmt.Errorf("parks: unsupported layer file %q", opt.Path)
	}
	if err != nil {
		return nil, err
	}
	proj, err := projectionFor(srs)
	if err != nil {
		return nil, err
	}
	var dp *simplify.DouglasPeuckerSimplifier
	if opt.Tolerance > 0 {
		dp = simplify.DouglasPeucker(opt.Tolerance)
	}
	for i := range feats {
		g := toWGS84(feats[i].Geometry, proj)
		if dp != nil && g != nil {
			if s := dp.Simplify(orb.Clone(g)); s != nil && !isEmpty(s) {
				g = s
			}
		}
		feats[i].Geometry = g
	}
	snap := BuildSnapshot(columns, feats)
	snap.SourceSRS = srs
	logger.L().Info("layer_load_ok",
		"path", opt.Path,
		"layer", opt.Layer,
		"srs", srs,
		"rows", len(feats),
		"parks", len(snap.Parks),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func readGeoPackage(ctx context.Context, path, layer string) ([]string, []Feature, int, error) {
	r, err := gpkg.Open(path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer r.Close()
	lyr, err := r.ReadLayer(ctx, layer)
	if err != nil {
		return nil, nil, 0, err
	}
	feats := make([]Feature, 0, len(lyr.Features))
	for _, f := range lyr.Features {
		attrs := make(map[string]any, len(lyr.Columns))
		for i, c := range lyr.Columns {
			if i < len(f.Values) {
				attrs[c] = f.Values[i]
			}
		}
		feats = append(feats, Feature{Geometry: f.Geometry, Attrs: attrs})
	}
	return lyr.Columns, feats, lyr.SRSID, nil
}

func readGeoJSON(path string) ([]string, []Feature, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, 0, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("parks: decode geojson: %w", err)
	}
	srs, err := crsFromMembers(fc.ExtraMembers)
	if err != nil {
		return nil, nil, 0, err
	}
	columns, err := propertyOrder(b)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("parks: decode geojson properties: %w", err)
	}
	feats := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		attrs := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		feats = append(feats, Feature{Geometry: f.Geometry, Attrs: attrs})
	}
	return columns, feats, srs, nil
}

// 文档注释：属性列顺序
// 背景：orb 的 Properties 是 map，解码后丢失键序；列顺序决定侧栏与提示框的展示顺序，需与源文件一致。
// 约束：按各要素 properties 中首次出现的顺序返回，跨要素去重。
func propertyOrder(b []byte) ([]string, error) {
	var raw struct {
		Features []struct {
			Properties json.RawMessage `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var columns []string
	for _, f := range raw.Features {
		if len(f.Properties) == 0 || string(f.Properties) == "null" {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(f.Properties))
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			if k, ok := tok.(string); ok && !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns, nil
}

// crsFromMembers：解析旧式 GeoJSON 的 crs 成员（如 urn:ogc:def:crs:EPSG::3006），缺省为 4326
func crsFromMembers(m geojson.Properties) (int, error) {
	crs, ok := m["crs"].(map[string]interface{})
	if !ok {
		return 4326, nil
	}
	props, _ := crs["properties"].(map[string]interface{})
	name, _ := props["name"].(string)
	if name == "" || strings.HasSuffix(strings.ToUpper(name), "CRS84") {
		return 4326, nil
	}
	code := name[strings.LastIndex(name, ":")+1:]
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedSRS, name)
	}
	return n, nil
}
