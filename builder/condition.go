package builder

import (
	"strings"
)

// Cond 自定义条件, sql 里的参数使用 :name 占位
// 示例: Cond("`age` > :age", map[string]any{"age": 18})
func Cond(sql string, values map[string]any) Expr {
	if values == nil {
		values = map[string]any{}
	}
	return Condition{S: sql, Value: values}
}

// Or 组合多个表达式, 使用 OR 连接
// 示例: Or(Cond("x1 = 11", nil), Cond("x2 >= 45", nil)) -> (x1 = 11 OR x2 >= 45)
func Or(expr ...Expr) Expr {
	return joinExpr(OR, expr)
}

// And 组合多个表达式, 使用 AND 连接
func And(expr ...Expr) Expr {
	return joinExpr(AND, expr)
}

// joinExpr 每个表达式前面都放一个连接符, 最后去掉第一个
func joinExpr(connector Keyword, expr []Expr) Expr {
	merged := NewMergeSqlSegment()
	values := map[string]any{}
	for _, e := range expr {
		if isEmptyExpr(e) {
			continue
		}
		merged.AddSegment(connector)
		merged.AddSegment(e)
		mergeValues(values, e.Values())
	}
	inner, err := merged.NoFirstSqlSegment()
	if err != nil {
		return Condition{Value: values}
	}
	return Condition{S: "(" + inner + ")", Value: values}
}

func isEmptyExpr(e Expr) bool {
	return isNilSegment(e) || strings.TrimSpace(e.SqlSegment()) == ""
}

func mergeValues(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
