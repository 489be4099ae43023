package theme

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"park-puls/internal/config"
	"park-puls/internal/logger"
)

var ErrUnknownTheme = errors.New("theme: unknown theme")

const DefaultNameColumn = "NAMN_top5"

type Theme struct {
	Name    string   `koanf:"name" json:"name"`
	Columns []string `koanf:"columns" json:"columns"`
}

// 文档注释：主题集合
// 背景：主题决定弹窗与侧栏展示的属性列；别名把图层字段名换成面向访客的标签。
// 约束：Themes 保持声明顺序，下拉框按此顺序渲染；NameColumn 为公园名称所在列。
type Set struct {
	Themes     []Theme
	Aliases    map[string]string
	NameColumn string
}

// Defaults：内置主题；app 形态的 Environment 主题展示生境列
func Defaults(profile string) *Set {
	env := []string{"NAMN_top5", "typology"}
	if profile == config.ProfileApp {
		env = []string{"NAMN_top5", "BIOTOP_combined"}
	}
	return &Set{
		Themes: []Theme{
			{Name: "Amenities", Columns: []string{"NAMN_top5", "TYP_combined", "typology", "amenities"}},
			{Name: "Environment", Columns: env},
			{Name: "Accessibility", Columns: []string{"NAMN_top5"}},
			{Name: "Socioeconomic factors", Columns: []string{"NAMN_top5"}},
		},
		Aliases: map[string]string{
			"NAMN_top5":       "Name(s)",
			"TYP_combined":    "Typology1",
			"typology":        "Typology2",
			"BIOTOP_combined": "Biotope",
			"amenities":       "Amenities",
		},
		NameColumn: DefaultNameColumn,
	}
}

// 文档注释：加载主题（内置默认 + 可选 YAML 覆盖）
// 背景：运营人员可在不改代码的情况下调整主题与别名；文件缺失时仅使用内置默认。
// 约束：themes 整体替换；aliases 逐键合并；空主题名或无列的主题视为配置错误。
func Load(path, profile string) (*Set, error) {
	set := Defaults(profile)
	if path == "" {
		return set, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.L().Debug("themes_file_absent", "path", path)
		return set, nil
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("theme: load %s: %w", path, err)
	}
	if k.Exists("themes") {
		var themes []Theme
		if err := k.Unmarshal("themes", &themes); err != nil {
			return nil, fmt.Errorf("theme: decode themes: %w", err)
		}
		for _, t := range themes {
			if t.Name == "" || len(t.Columns) == 0 {
				return nil, fmt.Errorf("theme: theme %q needs a name and at least one column", t.Name)
			}
		}
		set.Themes = themes
	}
	for col, label := range k.StringMap("aliases") {
		set.Aliases[col] = label
	}
	if s := k.String("name_column"); s != "" {
		set.NameColumn = s
	}
	logger.L().Info("themes_load_ok", "path", path, "themes", len(set.Themes), "aliases", len(set.Aliases))
	return set, nil
}

func (s *Set) Names() []string {
	out := make([]string, len(s.Themes))
	for i, t := range s.Themes {
		out[i] = t.Name
	}
	return out
}

func (s *Set) Get(name string) (Theme, error) {
	for _, t := range s.Themes {
		if t.Name == name {
			return t, nil
		}
	}
	return Theme{}, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
}

// Alias：未配置别名的列原样展示
func (s *Set) Alias(col string) string {
	if a, ok := s.Aliases[col]; ok {
		return a
	}
	return col
}

// 文档注释：按主题筛选图层中实际存在的列
// 约束：保持主题声明顺序；图层缺失的列跳过而不报错。
func (s *Set) Filter(name string, available []string) ([]string, error) {
	t, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(available))
	for _, c := range available {
		have[c] = true
	}
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if have[c] {
			out = append(out, c)
		}
	}
	return out, nil
}
