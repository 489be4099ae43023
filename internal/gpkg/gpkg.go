// 包 gpkg：GeoPackage 矢量图层的最小读写实现（SQLite 容器 + GP 几何二进制）
package gpkg

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"park-puls/internal/logger"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
)

var ErrLayerNotFound = errors.New("gpkg: layer not found")

// Layer：一个要素表的完整内容；Columns 与每个 Feature.Values 按位置对齐
type Layer struct {
	Name           string
	SRSID          int
	GeometryColumn string
	Columns        []string
	Features       []Feature
}

type Feature struct {
	FID      int64
	Geometry orb.Geometry
	Values   []any
}

// Reader：只读打开的 GeoPackage
type Reader struct {
	db   *sql.DB
	path string
}

// Open：以只读模式打开 GeoPackage 文件；文件不存在时直接返回 os 错误
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db, path: path}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// Layers：列出 gpkg_contents 中的要素表
func (r *Reader) Layers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("gpkg: list layers: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// 文档注释：读取要素表
// 背景：name 为空时取第一个要素表；整型主键列作为 FID，不计入属性列。
// 约束：空几何行跳过；属性值保持驱动原始类型（int64/float64/string/nil），[]byte 统一转为 string。
func (r *Reader) ReadLayer(ctx context.Context, name string) (*Layer, error) {
	if name == "" {
		names, err := r.Layers(ctx)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, ErrLayerNotFound
		}
		name = names[0]
	}
	lyr := &Layer{Name: name}
	row := r.db.QueryRowContext(ctx, `SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, name)
	if err := row.Scan(&lyr.GeometryColumn, &lyr.SRSID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, name)
		}
		return nil, fmt.Errorf("gpkg: geometry column of %s: %w", name, err)
	}
	pk, cols, err := r.tableColumns(ctx, name, lyr.GeometryColumn)
	if err != nil {
		return nil, err
	}
	lyr.Columns = cols
	sel := make([]string, 0, len(cols)+2)
	sel = append(sel, pk, quoteIdent(lyr.GeometryColumn))
	for _, c := range cols {
		sel = append(sel, quoteIdent(c))
	}
	q := "SELECT " + strings.Join(sel, ", ") + " FROM " + quoteIdent(name)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("gpkg: read %s: %w", name, err)
	}
	defer rows.Close()
	skipped := 0
	for rows.Next() {
		var fid int64
		var blob []byte
		vals := make([]any, len(cols))
		dest := make([]any, 0, len(cols)+2)
		dest = append(dest, &fid, &blob)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if len(blob) == 0 {
			skipped++
			continue
		}
		g, _, err := DecodeGeometry(blob)
		if err != nil {
			return nil, fmt.Errorf("gpkg: feature %d: %w", fid, err)
		}
		if g == nil {
			skipped++
			continue
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		lyr.Features = append(lyr.Features, Feature{FID: fid, Geometry: g, Values: vals})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("gpkg_layer_read", "path", r.path, "layer", name, "srs", lyr.SRSID, "features", len(lyr.Features), "skipped", skipped)
	return lyr, nil
}

// tableColumns：返回主键表达式与属性列（不含几何列）
func (r *Reader) tableColumns(ctx context.Context, table, geomCol string) (string, []string, error) {
	rows, err := r.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return "", nil, fmt.Errorf("gpkg: table_info %s: %w", table, err)
	}
	defer rows.Close()
	pk := "rowid"
	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notnull int
			dflt    any
			isPK    int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &isPK); err != nil {
			return "", nil, err
		}
		if isPK > 0 && strings.EqualFold(typ, "INTEGER") {
			pk = quoteIdent(name)
			continue
		}
		if strings.EqualFold(name, geomCol) {
			continue
		}
		cols = append(cols, name)
	}
	return pk, cols, rows.Err()
}

// 文档注释：写出单图层 GeoPackage
// 背景：供 layer-export 导出简化后的图层，以及测试构造夹具；文件已存在时覆盖。
// 约束：属性列类型按首个非空值推断（INTEGER/REAL/TEXT）；几何统一写为小端 GP 头。
func WriteLayer(ctx context.Context, path string, lyr *Layer) error {
	_ = os.Remove(path)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `PRAGMA application_id = 1196444487`); err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	geomCol := lyr.GeometryColumn
	if geomCol == "" {
		geomCol = "geom"
	}
	defs := []string{
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER
		)`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name)
		)`,
	}
	for _, s := range defs {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("gpkg: init: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO gpkg_spatial_ref_sys VALUES (?, ?, 'EPSG', ?, 'undefined', NULL)`,
		fmt.Sprintf("EPSG:%d", lyr.SRSID), lyr.SRSID, lyr.SRSID); err != nil {
		return err
	}
	colDefs := []string{`"fid" INTEGER PRIMARY KEY AUTOINCREMENT`, quoteIdent(geomCol) + " BLOB"}
	for i, c := range lyr.Columns {
		colDefs = append(colDefs, quoteIdent(c)+" "+sqliteType(lyr.Features, i))
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+quoteIdent(lyr.Name)+" ("+strings.Join(colDefs, ", ")+")"); err != nil {
		return fmt.Errorf("gpkg: create %s: %w", lyr.Name, err)
	}
	var bound orb.Bound
	for i, f := range lyr.Features {
		if i == 0 {
			bound = f.Geometry.Bound()
		} else {
			bound = bound.Union(f.Geometry.Bound())
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id) VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`,
		lyr.Name, lyr.Name, bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1], lyr.SRSID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO gpkg_geometry_columns VALUES (?, ?, 'GEOMETRY', ?, 0, 0)`, lyr.Name, geomCol, lyr.SRSID); err != nil {
		return err
	}
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(lyr.Columns)+1), ", ")
	names := []string{quoteIdent(geomCol)}
	for _, c := range lyr.Columns {
		names = append(names, quoteIdent(c))
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoteIdent(lyr.Name)+" ("+strings.Join(names, ", ")+") VALUES ("+ph+")")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, f := range lyr.Features {
		blob, err := EncodeGeometry(f.Geometry, int32(lyr.SRSID))
		if err != nil {
			return err
		}
		args := append([]any{blob}, f.Values...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("gpkg: insert feature: %w", err)
		}
	}
	return tx.Commit()
}

func sqliteType(fs []Feature, col int) string {
	for _, f := range fs {
		if col >= len(f.Values) {
			continue
		}
		switch f.Values[col].(type) {
		case nil:
			continue
		case int, int32, int64, bool:
			return "INTEGER"
		case float32, float64:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func putFloat(b []byte, f float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(f))
}
