package builder

import (
	"maps"
	"reflect"
	"strconv"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/pkg/errors"
)

// mysqlMaxLimit 只有 OFFSET 没有 LIMIT 时使用, MySQL 没有单独的 OFFSET 写法
const mysqlMaxLimit = "18446744073709551615"

// ErrParamConflict 同一个参数名绑定了不同的值
var ErrParamConflict = errors.New("named parameter bound twice")

// LambdaQuery 链式构造 SELECT / INSERT / DELETE / UPDATE
// 所有条件都是 "连接符 + 条件" 成对追加到 where 模板里, 渲染时去掉第一个连接符
// 出现参数冲突之后所有的渲染方法都返回空字符串, 用 Err 查看原因
type LambdaQuery struct {
	table     string
	alias     string
	columns   []string
	where     *MergeSqlSegment
	connector Keyword
	groupBy   []string
	having    *MergeSqlSegment
	orderBy   []Segment
	limit     int
	offset    int

	args   *argNames
	values map[string]any
	err    error
}

// As 设置表别名
func (q *LambdaQuery) As(alias string) *LambdaQuery {
	q.alias = alias
	return q
}

// Select 需要查询的列, 不设置就是 *
func (q *LambdaQuery) Select(columns ...string) *LambdaQuery {
	q.columns = append(q.columns, columns...)
	return q
}

// And 下一个条件用 AND 连接(默认)
func (q *LambdaQuery) And() *LambdaQuery {
	q.connector = AND
	return q
}

// Or 下一个条件用 OR 连接
func (q *LambdaQuery) Or() *LambdaQuery {
	q.connector = OR
	return q
}

func (q *LambdaQuery) Eq(column string, value any) *LambdaQuery {
	return q.compare(column, "=", value)
}

func (q *LambdaQuery) Ne(column string, value any) *LambdaQuery {
	return q.compare(column, "<>", value)
}

func (q *LambdaQuery) Gt(column string, value any) *LambdaQuery {
	return q.compare(column, ">", value)
}

func (q *LambdaQuery) Ge(column string, value any) *LambdaQuery {
	return q.compare(column, ">=", value)
}

func (q *LambdaQuery) Lt(column string, value any) *LambdaQuery {
	return q.compare(column, "<", value)
}

func (q *LambdaQuery) Le(column string, value any) *LambdaQuery {
	return q.compare(column, "<=", value)
}

// Like 两边模糊 %value%
func (q *LambdaQuery) Like(column string, value string) *LambdaQuery {
	return q.compare(column, "LIKE", "%"+value+"%")
}

func (q *LambdaQuery) NotLike(column string, value string) *LambdaQuery {
	return q.compare(column, "NOT LIKE", "%"+value+"%")
}

// LikeLeft %value
func (q *LambdaQuery) LikeLeft(column string, value string) *LambdaQuery {
	return q.compare(column, "LIKE", "%"+value)
}

// LikeRight value%
func (q *LambdaQuery) LikeRight(column string, value string) *LambdaQuery {
	return q.compare(column, "LIKE", value+"%")
}

func (q *LambdaQuery) IsNull(column string) *LambdaQuery {
	return q.addCondition(Column(column), SqlText("IS NULL"))
}

func (q *LambdaQuery) IsNotNull(column string) *LambdaQuery {
	return q.addCondition(Column(column), SqlText("IS NOT NULL"))
}

// In values 必须是切片, 由 sqlx.In 展开; 空切片恒为假
func (q *LambdaQuery) In(column string, values any) *LambdaQuery {
	if isEmptySlice(values) {
		return q.addCondition(SqlText("1 = 0"))
	}
	name := q.bind(values)
	return q.addCondition(Column(column), SqlText("IN"), SqlText("("+Placeholder(name).SqlSegment()+")"))
}

// NotIn 空切片恒为真
func (q *LambdaQuery) NotIn(column string, values any) *LambdaQuery {
	if isEmptySlice(values) {
		return q.addCondition(SqlText("1 = 1"))
	}
	name := q.bind(values)
	return q.addCondition(Column(column), SqlText("NOT IN"), SqlText("("+Placeholder(name).SqlSegment()+")"))
}

func (q *LambdaQuery) Between(column string, start, end any) *LambdaQuery {
	return q.between(column, "BETWEEN", start, end)
}

func (q *LambdaQuery) NotBetween(column string, start, end any) *LambdaQuery {
	return q.between(column, "NOT BETWEEN", start, end)
}

// Apply 追加一段原始条件, 参数使用 :name 占位
func (q *LambdaQuery) Apply(sql string, values map[string]any) *LambdaQuery {
	return q.Where(Cond(sql, values))
}

// Where 追加表达式, 空表达式直接忽略
func (q *LambdaQuery) Where(expr ...Expr) *LambdaQuery {
	for _, e := range expr {
		if isEmptyExpr(e) {
			continue
		}
		q.mergeValues(e.Values())
		q.addCondition(e)
	}
	return q
}

// Nested 括号包裹的一组条件, 组内为空时不输出任何内容
// 组内只有条件方法生效, Select GroupBy Having OrderBy Limit Offset As 都会被忽略
// 示例: q.Eq("a", 1).Or().Nested(func(n *LambdaQuery) { n.Eq("b", 2).Eq("c", 3) })
// -> `a` = :arg0 OR ( `b` = :arg1 AND `c` = :arg2 )
func (q *LambdaQuery) Nested(fn func(nested *LambdaQuery)) *LambdaQuery {
	child := newLambda("", q.args, q.values)
	fn(child)
	if child.err != nil && q.err == nil {
		q.err = child.err
	}
	inner, err := child.where.NoFirstSqlSegment()
	if err != nil {
		return q
	}
	return q.addCondition(LEFT, SqlText(inner), RIGHT)
}

func (q *LambdaQuery) GroupBy(columns ...string) *LambdaQuery {
	q.groupBy = append(q.groupBy, columns...)
	return q
}

// Having 多个表达式用 AND 连接, 跟在 GROUP BY 后面
// 示例: q.GroupBy("city").Having(Cond("COUNT(*) > :n", map[string]any{"n": 10}))
func (q *LambdaQuery) Having(expr ...Expr) *LambdaQuery {
	for _, e := range expr {
		if isEmptyExpr(e) {
			continue
		}
		q.mergeValues(e.Values())
		q.having.AddSegment(AND)
		q.having.AddSegment(e)
	}
	return q
}

// OrderBy 同 Asc
func (q *LambdaQuery) OrderBy(columns ...string) *LambdaQuery {
	return q.Asc(columns...)
}

func (q *LambdaQuery) Asc(columns ...string) *LambdaQuery {
	return q.order("ASC", columns)
}

func (q *LambdaQuery) Desc(columns ...string) *LambdaQuery {
	return q.order("DESC", columns)
}

func (q *LambdaQuery) Limit(limit int) *LambdaQuery {
	q.limit = limit
	return q
}

func (q *LambdaQuery) Offset(offset int) *LambdaQuery {
	q.offset = offset
	return q
}

// First limit 1
func (q *LambdaQuery) First() *LambdaQuery {
	q.limit = 1
	return q
}

// Err 参数冲突等构造错误
func (q *LambdaQuery) Err() error {
	return q.err
}

// WhereSegment 复制一份 where 模板(包含开头的连接符), 修改它不会影响当前查询
func (q *LambdaQuery) WhereSegment() *MergeSqlSegment {
	sub, _ := q.where.Sub(0)
	return sub
}

// Values 目前已经绑定的参数
func (q *LambdaQuery) Values() map[string]any {
	return maps.Clone(q.values)
}

// Query SELECT ... FROM ... WHERE ... GROUP BY ... HAVING ... ORDER BY ... LIMIT ...
func (q *LambdaQuery) Query() (string, map[string]any) {
	if q.err != nil {
		return "", nil
	}
	stmt := NewMergeSqlSegment(SqlText("SELECT"), q.selectSegment(), SqlText("FROM"), q.tableSegment())
	stmt.AddSegment(q.whereSegment())
	stmt.AddSegment(q.groupBySegment())
	stmt.AddSegment(q.havingSegment())
	stmt.AddSegment(q.orderBySegment())
	stmt.AddSegment(q.limitSegment())
	return stmt.SqlSegment(), q.Values()
}

// QueryCount SELECT COUNT(*) ..., 忽略排序和分页
// 有分组时统计分组数: SELECT COUNT(*) FROM (SELECT ... GROUP BY ...) AS t_count
func (q *LambdaQuery) QueryCount() (string, map[string]any) {
	if q.err != nil {
		return "", nil
	}
	if len(q.groupBy) == 0 && q.having.IsEmpty() {
		stmt := NewMergeSqlSegment(SqlText("SELECT COUNT(*) FROM"), q.tableSegment())
		stmt.AddSegment(q.whereSegment())
		return stmt.SqlSegment(), q.Values()
	}
	inner := NewMergeSqlSegment(SqlText("SELECT"), q.groupSelectSegment(), SqlText("FROM"), q.tableSegment())
	inner.AddSegment(q.whereSegment())
	inner.AddSegment(q.groupBySegment())
	inner.AddSegment(q.havingSegment())
	stmt := NewMergeSqlSegment(SqlText("SELECT COUNT(*) FROM"), SqlText("("+inner.SqlSegment()+")"), SqlText("AS t_count"))
	return stmt.SqlSegment(), q.Values()
}

// Delete DELETE FROM ... WHERE ..., 带别名需要 MySQL 8.0.16+
func (q *LambdaQuery) Delete() (string, map[string]any) {
	if q.err != nil {
		return "", nil
	}
	stmt := NewMergeSqlSegment(SqlText("DELETE FROM"), q.tableSegment())
	stmt.AddSegment(q.whereSegment())
	return stmt.SqlSegment(), q.Values()
}

// Update UPDATE ... SET `a` = :set0 ... WHERE ...
// set 按列名排序, 保证输出稳定; set 为空返回空字符串
func (q *LambdaQuery) Update(set map[string]any) (string, map[string]any) {
	return q.update(sortedKeys(set), set)
}

// UpdateOrdered SET 的顺序和 set 一致, 单个 map 内按列名排序
// 示例: UpdateOrdered([]map[string]any{{"status": 1}, {"updated_at": now}})
func (q *LambdaQuery) UpdateOrdered(set []map[string]any) (string, map[string]any) {
	var columns []string
	merged := map[string]any{}
	for _, m := range set {
		for _, c := range sortedKeys(m) {
			if _, ok := merged[c]; !ok {
				columns = append(columns, c)
			}
			merged[c] = m[c]
		}
	}
	return q.update(columns, merged)
}

// Insert INSERT INTO `t` (`a`, `b`) VALUES (:v0_0, :v0_1), 不使用 where 条件
func (q *LambdaQuery) Insert(row map[string]any) (string, map[string]any) {
	return q.InsertMany([]map[string]any{row})
}

// InsertMany 列以第一行为准(按列名排序), 其他行缺少的列写 NULL
func (q *LambdaQuery) InsertMany(rows []map[string]any) (string, map[string]any) {
	stmt, values := q.insertSegment(rows)
	if stmt == nil {
		return "", nil
	}
	return stmt.SqlSegment(), values
}

// InsertOnDuplicate 冲突时用插入的值更新 updateColumns
// ON DUPLICATE KEY UPDATE `a` = VALUES(`a`)
func (q *LambdaQuery) InsertOnDuplicate(row map[string]any, updateColumns ...string) (string, map[string]any) {
	stmt, values := q.insertSegment([]map[string]any{row})
	if stmt == nil {
		return "", nil
	}
	parts := slice.Map(slice.Filter(updateColumns, func(_ int, c string) bool {
		return strings.TrimSpace(c) != ""
	}), func(_ int, c string) string {
		col := Column(c).SqlSegment()
		return col + " = VALUES(" + col + ")"
	})
	stmt.AddSegment(onDuplicateSegment(parts))
	return stmt.SqlSegment(), values
}

// InsertOnDuplicateMap 冲突时使用 update 里的值更新
// ON DUPLICATE KEY UPDATE `a` = :upd0
func (q *LambdaQuery) InsertOnDuplicateMap(row map[string]any, update map[string]any) (string, map[string]any) {
	stmt, values := q.insertSegment([]map[string]any{row})
	if stmt == nil {
		return "", nil
	}
	next := 0
	parts := slice.Map(sortedKeys(update), func(_ int, c string) string {
		name := uniqueName(values, "upd", &next)
		values[name] = update[c]
		return NewMergeSqlSegment(Column(c), SqlText("="), Placeholder(name)).SqlSegment()
	})
	stmt.AddSegment(onDuplicateSegment(parts))
	return stmt.SqlSegment(), values
}

func (q *LambdaQuery) compare(column string, op string, value any) *LambdaQuery {
	name := q.bind(value)
	return q.addCondition(Column(column), SqlText(op), Placeholder(name))
}

func (q *LambdaQuery) between(column string, op string, start, end any) *LambdaQuery {
	s := q.bind(start)
	e := q.bind(end)
	return q.addCondition(Column(column), SqlText(op), Placeholder(s), AND, Placeholder(e))
}

func (q *LambdaQuery) addCondition(segments ...Segment) *LambdaQuery {
	q.where.AddSegment(q.connector)
	q.where.AddSegment(NewMergeSqlSegment(segments...))
	q.connector = AND
	return q
}

func (q *LambdaQuery) bind(value any) string {
	name := q.args.name(q.values)
	q.values[name] = value
	return name
}

// mergeValues 自定义参数和已有参数同名时值必须相同
func (q *LambdaQuery) mergeValues(values map[string]any) {
	for _, k := range sortedKeys(values) {
		v := values[k]
		if old, ok := q.values[k]; ok && !reflect.DeepEqual(old, v) {
			if q.err == nil {
				q.err = errors.Wrapf(ErrParamConflict, "%q: %v and %v", k, old, v)
			}
			continue
		}
		q.values[k] = v
	}
}

func (q *LambdaQuery) update(columns []string, set map[string]any) (string, map[string]any) {
	if q.err != nil || q.table == "" || len(columns) == 0 {
		return "", nil
	}
	values := q.Values()
	next := 0
	parts := slice.Map(columns, func(_ int, c string) string {
		name := uniqueName(values, "set", &next)
		values[name] = set[c]
		return NewMergeSqlSegment(Column(c), SqlText("="), Placeholder(name)).SqlSegment()
	})

	stmt := NewMergeSqlSegment(SqlText("UPDATE"), q.tableSegment(), SqlText("SET"), SqlText(strings.Join(parts, ", ")))
	stmt.AddSegment(q.whereSegment())
	return stmt.SqlSegment(), values
}

// insertSegment 参数名 v行_列, 和查询条件的参数互不影响
func (q *LambdaQuery) insertSegment(rows []map[string]any) (*MergeSqlSegment, map[string]any) {
	if q.err != nil || q.table == "" || len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil
	}
	columns := sortedKeys(rows[0])
	values := map[string]any{}
	tuples := slice.Map(rows, func(i int, row map[string]any) string {
		names := slice.Map(columns, func(j int, c string) string {
			name := "v" + strconv.Itoa(i) + "_" + strconv.Itoa(j)
			values[name] = row[c]
			return Placeholder(name).SqlSegment()
		})
		return "(" + strings.Join(names, ", ") + ")"
	})
	quoted := slice.Map(columns, func(_ int, c string) string {
		return ColumnNameHandler(c)
	})
	stmt := NewMergeSqlSegment(
		SqlText("INSERT INTO"), Column(q.table),
		SqlText("("+strings.Join(quoted, ", ")+")"),
		SqlText("VALUES"), SqlText(strings.Join(tuples, ", ")),
	)
	return stmt, values
}

func onDuplicateSegment(parts []string) *MergeSqlSegment {
	if len(parts) == 0 {
		return nil
	}
	return NewMergeSqlSegment(SqlText("ON DUPLICATE KEY UPDATE"), SqlText(strings.Join(parts, ", ")))
}

func (q *LambdaQuery) order(direction string, columns []string) *LambdaQuery {
	for _, c := range columns {
		q.orderBy = append(q.orderBy, NewMergeSqlSegment(Column(c), SqlText(direction)))
	}
	return q
}

func (q *LambdaQuery) selectSegment() Segment {
	if len(q.columns) == 0 {
		return SqlText("*")
	}
	return Columns(q.columns)
}

// groupSelectSegment 统计分组数时子查询的列, 没有指定列时使用分组列
func (q *LambdaQuery) groupSelectSegment() Segment {
	switch {
	case len(q.columns) > 0:
		return Columns(q.columns)
	case len(q.groupBy) > 0:
		return Columns(q.groupBy)
	}
	return SqlText("1")
}

func (q *LambdaQuery) tableSegment() Segment {
	if q.alias == "" {
		return Column(q.table)
	}
	return NewMergeSqlSegment(Column(q.table), SqlText("AS"), SqlText(q.alias))
}

// whereSegment 没有条件时返回 nil, AddSegment 会忽略
func (q *LambdaQuery) whereSegment() *MergeSqlSegment {
	cond, err := q.where.NoFirstSqlSegment()
	if err != nil {
		return nil
	}
	return NewMergeSqlSegment(WHERE, SqlText(cond))
}

func (q *LambdaQuery) groupBySegment() *MergeSqlSegment {
	if len(q.groupBy) == 0 {
		return nil
	}
	return NewMergeSqlSegment(GROUP_BY, Columns(q.groupBy))
}

func (q *LambdaQuery) havingSegment() *MergeSqlSegment {
	cond, err := q.having.NoFirstSqlSegment()
	if err != nil {
		return nil
	}
	return NewMergeSqlSegment(HAVING, SqlText(cond))
}

func (q *LambdaQuery) orderBySegment() *MergeSqlSegment {
	if len(q.orderBy) == 0 {
		return nil
	}
	parts := slice.Map(q.orderBy, func(_ int, s Segment) string {
		return s.SqlSegment()
	})
	return NewMergeSqlSegment(ORDER_BY, SqlText(strings.Join(parts, ", ")))
}

// limitSegment MySQL 语法: LIMIT offset, limit
func (q *LambdaQuery) limitSegment() Segment {
	switch {
	case q.offset > 0 && q.limit > 0:
		return SqlText("LIMIT " + strconv.Itoa(q.offset) + ", " + strconv.Itoa(q.limit))
	case q.offset > 0:
		return SqlText("LIMIT " + strconv.Itoa(q.offset) + ", " + mysqlMaxLimit)
	case q.limit > 0:
		return SqlText("LIMIT " + strconv.Itoa(q.limit))
	}
	return nil
}
