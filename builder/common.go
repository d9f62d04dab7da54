package builder

import (
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
)

var (
	ignoreColumnHandlerRe = regexp.MustCompile("^([^.,]+\\.)?(\\d+|'[^']+'|\"[^\"]+\"|`[^`]+`(\\.`[^`]+`.*)?|\\*)$|(\\b[\\w]+\\.\\`[^`]+\\`)")
	sqlStringReplacer     = strings.NewReplacer(
		"\\", "\\\\",
		"'", "''",
		// sqlx.Named 把 :: 还原成 :
		":", "::",
	)
)

// ColumnNameHandler 为列名添加反引号, 防止和关键字冲突
// 纯数字, 已带引号的字符串, 通配符*, 函数或表达式 不处理
// user.name -> user.`name`
func ColumnNameHandler(field string) string {
	field = strings.TrimSpace(field)
	if field == "" {
		return ""
	}
	if strings.ContainsAny(field, " ()") || ignoreColumnHandlerRe.MatchString(field) {
		return field
	}
	fields := strings.Split(field, ".")
	last := len(fields) - 1
	if fields[last] == "" {
		return field
	}
	fields[last] = "`" + fields[last] + "`"
	return strings.Join(fields, ".")
}

// escapeSQLString 只用于直接拼接的场景, 推荐使用占位符
// 输出是给 sqlx.Named 用的, 冒号会写成 ::
func escapeSQLString(s string) string {
	return sqlStringReplacer.Replace(s)
}

// Column 列名片段, 渲染时加反引号
type Column string

func (c Column) SqlSegment() string {
	return ColumnNameHandler(string(c))
}

// Columns 列名列表, 逗号拼接, 空列名会被丢掉
type Columns []string

func (cs Columns) SqlSegment() string {
	names := slice.Filter(cs, func(_ int, c string) bool {
		return strings.TrimSpace(c) != ""
	})
	return strings.Join(slice.Map(names, func(_ int, c string) string {
		return ColumnNameHandler(c)
	}), ", ")
}

// Literal 字符串字面量, 单引号包裹并转义
type Literal string

func (l Literal) SqlSegment() string {
	return "'" + escapeSQLString(string(l)) + "'"
}

// Placeholder sqlx 命名参数 :name
type Placeholder string

func (p Placeholder) SqlSegment() string {
	return ":" + string(p)
}

// argNames 生成参数名 arg0 arg1 ... 嵌套的条件共享同一个计数器
type argNames struct {
	next int
}

// name 跳过 values 里已经存在的名字
func (a *argNames) name(values map[string]any) string {
	return uniqueName(values, "arg", &a.next)
}

func uniqueName(values map[string]any, prefix string, next *int) string {
	for {
		n := prefix + strconv.Itoa(*next)
		*next++
		if _, used := values[n]; !used {
			return n
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isEmptySlice(values any) bool {
	if values == nil {
		return true
	}
	v := reflect.ValueOf(values)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return v.Len() == 0
	}
	return false
}
