package builder

import (
	"strconv"

	"github.com/duke-git/lancet/v2/convertor"
)

// 常用函数, 返回的字符串可以直接用于 Select / GroupBy / OrderBy

func Count(field string) string {
	if field == "" || field == "*" {
		return "COUNT(*)"
	}
	return "COUNT(" + ColumnNameHandler(field) + ")"
}

func Sum(field string) string {
	return "SUM(" + ColumnNameHandler(field) + ")"
}

func Max(field string) string {
	return "MAX(" + ColumnNameHandler(field) + ")"
}

func Min(field string) string {
	return "MIN(" + ColumnNameHandler(field) + ")"
}

func Distinct(field string) string {
	return "DISTINCT(" + ColumnNameHandler(field) + ")"
}

// IfNull IFNULL(`field`, 'value')
func IfNull(field string, value any) string {
	return "IFNULL(" + ColumnNameHandler(field) + ", " + literalOf(value) + ")"
}

func Round(field string, num int) string {
	return "ROUND(" + ColumnNameHandler(field) + ", " + strconv.Itoa(num) + ")"
}

func Now() string {
	return "NOW()"
}

// As 设置别名
// As(Count("id"), "c") -> COUNT(`id`) AS c
func As(expr string, label string) string {
	return NewMergeSqlSegment(SqlText(expr), SqlText("AS"), SqlText(label)).SqlSegment()
}

func literalOf(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return Literal(v).SqlSegment()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	}
	return Literal(convertor.ToString(value)).SqlSegment()
}
