package builder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLambdaQuery(t *testing.T) {
	type tcase struct {
		name   string
		build  func() (string, map[string]any)
		want   string
		params map[string]any
	}
	cc := []tcase{
		{
			name: "无条件",
			build: func() (string, map[string]any) {
				return Lambda("t_user").Query()
			},
			want:   "SELECT * FROM `t_user`",
			params: map[string]any{},
		},
		{
			name: "简单条件",
			build: func() (string, map[string]any) {
				return Lambda("t_user").Select("id", "name").Eq("age", 18).Like("name", "x").Query()
			},
			want:   "SELECT `id`, `name` FROM `t_user` WHERE `age` = :arg0 AND `name` LIKE :arg1",
			params: map[string]any{"arg0": 18, "arg1": "%x%"},
		},
		{
			name: "OR 嵌套 排序 分页",
			build: func() (string, map[string]any) {
				return Lambda("t_user").As("u").
					Eq("u.status", 1).
					Or().Nested(func(n *LambdaQuery) {
					n.Gt("u.age", 18).Lt("u.age", 60)
				}).
					Desc("u.id").
					Limit(10).Offset(20).
					Query()
			},
			want:   "SELECT * FROM `t_user` AS u WHERE u.`status` = :arg0 OR ( u.`age` > :arg1 AND u.`age` < :arg2 ) ORDER BY u.`id` DESC LIMIT 20, 10",
			params: map[string]any{"arg0": 1, "arg1": 18, "arg2": 60},
		},
		{
			name: "空的嵌套被忽略",
			build: func() (string, map[string]any) {
				return Lambda("t").Eq("a", 1).Nested(func(*LambdaQuery) {}).Eq("b", 2).Query()
			},
			want:   "SELECT * FROM `t` WHERE `a` = :arg0 AND `b` = :arg1",
			params: map[string]any{"arg0": 1, "arg1": 2},
		},
		{
			name: "嵌套在最前面",
			build: func() (string, map[string]any) {
				return Lambda("t").Nested(func(n *LambdaQuery) {
					n.Eq("a", 1).Or().Eq("b", 2)
				}).Ne("c", 3).Query()
			},
			want:   "SELECT * FROM `t` WHERE ( `a` = :arg0 OR `b` = :arg1 ) AND `c` <> :arg2",
			params: map[string]any{"arg0": 1, "arg1": 2, "arg2": 3},
		},
		{
			name: "in between null",
			build: func() (string, map[string]any) {
				return Lambda("t").
					In("id", []int{1, 2}).
					Between("age", 18, 30).
					IsNull("deleted_at").
					NotIn("x", []string{}).
					Query()
			},
			want:   "SELECT * FROM `t` WHERE `id` IN (:arg0) AND `age` BETWEEN :arg1 AND :arg2 AND `deleted_at` IS NULL AND 1 = 1",
			params: map[string]any{"arg0": []int{1, 2}, "arg1": 18, "arg2": 30},
		},
		{
			name: "空 in 恒为假",
			build: func() (string, map[string]any) {
				return Lambda("t").In("id", []int64{}).IsNotNull("name").Query()
			},
			want:   "SELECT * FROM `t` WHERE 1 = 0 AND `name` IS NOT NULL",
			params: map[string]any{},
		},
		{
			name: "表达式",
			build: func() (string, map[string]any) {
				return Lambda("t").
					Where(
						Or(Cond("`a` = :a", map[string]any{"a": 1}), Cond("`b` = :b", map[string]any{"b": 2})),
						Cond("", nil),
					).
					Ge("c", 3).
					Query()
			},
			want:   "SELECT * FROM `t` WHERE (`a` = :a OR `b` = :b) AND `c` >= :arg0",
			params: map[string]any{"a": 1, "b": 2, "arg0": 3},
		},
		{
			name: "分组",
			build: func() (string, map[string]any) {
				return Lambda("t").Select("status", "COUNT(*) AS c").GroupBy("status").Asc("status").Query()
			},
			want:   "SELECT `status`, COUNT(*) AS c FROM `t` GROUP BY `status` ORDER BY `status` ASC",
			params: map[string]any{},
		},
		{
			name: "count 忽略排序分页",
			build: func() (string, map[string]any) {
				return Lambda("t").Eq("a", 1).Desc("a").Limit(5).QueryCount()
			},
			want:   "SELECT COUNT(*) FROM `t` WHERE `a` = :arg0",
			params: map[string]any{"arg0": 1},
		},
		{
			name: "first",
			build: func() (string, map[string]any) {
				return Lambda("t").LikeRight("name", "ab").First().Query()
			},
			want:   "SELECT * FROM `t` WHERE `name` LIKE :arg0 LIMIT 1",
			params: map[string]any{"arg0": "ab%"},
		},
		{
			name: "删除",
			build: func() (string, map[string]any) {
				return Lambda("t_user").Eq("id", 7).Delete()
			},
			want:   "DELETE FROM `t_user` WHERE `id` = :arg0",
			params: map[string]any{"arg0": 7},
		},
		{
			name: "更新",
			build: func() (string, map[string]any) {
				return Lambda("t_user").Eq("id", 7).Update(map[string]any{"name": "n", "age": 3})
			},
			want:   "UPDATE `t_user` SET `age` = :set0, `name` = :set1 WHERE `id` = :arg0",
			params: map[string]any{"arg0": 7, "set0": 3, "set1": "n"},
		},
		{
			name: "更新列名清洗后相同",
			build: func() (string, map[string]any) {
				return Lambda("t").Update(map[string]any{"a.b": 1, "a_b": 2})
			},
			want:   "UPDATE `t` SET a.`b` = :set0, `a_b` = :set1",
			params: map[string]any{"set0": 1, "set1": 2},
		},
		{
			name: "更新不覆盖条件参数",
			build: func() (string, map[string]any) {
				return Lambda("t").Apply("`x` = :set0", map[string]any{"set0": 9}).Update(map[string]any{"y": 1})
			},
			want:   "UPDATE `t` SET `y` = :set1 WHERE `x` = :set0",
			params: map[string]any{"set0": 9, "set1": 1},
		},
		{
			name: "按顺序更新",
			build: func() (string, map[string]any) {
				return Lambda("t").Eq("id", 1).UpdateOrdered([]map[string]any{{"b": 1}, {"a": 2}})
			},
			want:   "UPDATE `t` SET `b` = :set0, `a` = :set1 WHERE `id` = :arg0",
			params: map[string]any{"arg0": 1, "set0": 1, "set1": 2},
		},
		{
			name: "自定义参数名不被覆盖",
			build: func() (string, map[string]any) {
				return Lambda("t").Apply("`x` = :arg0", map[string]any{"arg0": 5}).Eq("a", 1).Query()
			},
			want:   "SELECT * FROM `t` WHERE `x` = :arg0 AND `a` = :arg1",
			params: map[string]any{"arg0": 5, "arg1": 1},
		},
		{
			name: "删除带别名",
			build: func() (string, map[string]any) {
				return Lambda("t").As("u").Eq("u.id", 1).Delete()
			},
			want:   "DELETE FROM `t` AS u WHERE u.`id` = :arg0",
			params: map[string]any{"arg0": 1},
		},
		{
			name: "只有 offset",
			build: func() (string, map[string]any) {
				return Lambda("t").Offset(20).Query()
			},
			want:   "SELECT * FROM `t` LIMIT 20, 18446744073709551615",
			params: map[string]any{},
		},
		{
			name: "count 分组",
			build: func() (string, map[string]any) {
				return Lambda("t").Eq("a", 1).GroupBy("status").Desc("status").Limit(3).QueryCount()
			},
			want:   "SELECT COUNT(*) FROM (SELECT `status` FROM `t` WHERE `a` = :arg0 GROUP BY `status`) AS t_count",
			params: map[string]any{"arg0": 1},
		},
		{
			name: "having",
			build: func() (string, map[string]any) {
				return Lambda("t").Select("city", As(Count(""), "c")).
					GroupBy("city").
					Having(Cond("COUNT(*) > :n", map[string]any{"n": 10}), Cond("", nil)).
					Desc("c").
					Query()
			},
			want:   "SELECT `city`, COUNT(*) AS c FROM `t` GROUP BY `city` HAVING COUNT(*) > :n ORDER BY `c` DESC",
			params: map[string]any{"n": 10},
		},
		{
			name: "count having",
			build: func() (string, map[string]any) {
				return Lambda("t").GroupBy("city").Having(Cond("COUNT(*) > :n", map[string]any{"n": 10})).QueryCount()
			},
			want:   "SELECT COUNT(*) FROM (SELECT `city` FROM `t` GROUP BY `city` HAVING COUNT(*) > :n) AS t_count",
			params: map[string]any{"n": 10},
		},
		{
			name: "字面量里的冒号",
			build: func() (string, map[string]any) {
				return Lambda("t").Select(IfNull("start_at", "10:30")).Eq("id", 1).Query()
			},
			want:   "SELECT IFNULL(`start_at`, '10::30') FROM `t` WHERE `id` = :arg0",
			params: map[string]any{"arg0": 1},
		},
		{
			name: "嵌套里只有条件生效",
			build: func() (string, map[string]any) {
				return Lambda("t").Nested(func(n *LambdaQuery) {
					n.As("x").Select("x").GroupBy("g").Desc("id").Limit(3).Offset(1).Eq("a", 1)
				}).Query()
			},
			want:   "SELECT * FROM `t` WHERE ( `a` = :arg0 )",
			params: map[string]any{"arg0": 1},
		},
		{
			name: "插入",
			build: func() (string, map[string]any) {
				return Lambda("t").Eq("x", 1).Insert(map[string]any{"name": "n", "age": 3})
			},
			want:   "INSERT INTO `t` (`age`, `name`) VALUES (:v0_0, :v0_1)",
			params: map[string]any{"v0_0": 3, "v0_1": "n"},
		},
		{
			name: "批量插入",
			build: func() (string, map[string]any) {
				return Lambda("t").InsertMany([]map[string]any{{"a": 1, "b": 2}, {"a": 3}})
			},
			want:   "INSERT INTO `t` (`a`, `b`) VALUES (:v0_0, :v0_1), (:v1_0, :v1_1)",
			params: map[string]any{"v0_0": 1, "v0_1": 2, "v1_0": 3, "v1_1": nil},
		},
		{
			name: "插入冲突时更新列",
			build: func() (string, map[string]any) {
				return Lambda("t").InsertOnDuplicate(map[string]any{"id": 1, "name": "n"}, "name", " ")
			},
			want:   "INSERT INTO `t` (`id`, `name`) VALUES (:v0_0, :v0_1) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)",
			params: map[string]any{"v0_0": 1, "v0_1": "n"},
		},
		{
			name: "插入冲突时没有更新列",
			build: func() (string, map[string]any) {
				return Lambda("t").InsertOnDuplicate(map[string]any{"id": 1})
			},
			want:   "INSERT INTO `t` (`id`) VALUES (:v0_0)",
			params: map[string]any{"v0_0": 1},
		},
		{
			name: "插入冲突时使用指定值",
			build: func() (string, map[string]any) {
				return Lambda("t").InsertOnDuplicateMap(map[string]any{"id": 1, "cnt": 1}, map[string]any{"cnt": 5})
			},
			want:   "INSERT INTO `t` (`cnt`, `id`) VALUES (:v0_0, :v0_1) ON DUPLICATE KEY UPDATE `cnt` = :upd0",
			params: map[string]any{"v0_0": 1, "v0_1": 1, "upd0": 5},
		},
	}
	for _, c := range cc {
		t.Run(c.name, func(t *testing.T) {
			sql, params := c.build()
			fmt.Println("SQL:", sql)
			fmt.Println("参数:", params)
			if diff := cmp.Diff(c.want, sql); diff != "" {
				t.Errorf("sql mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(c.params, params); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLambdaUpdateEmpty(t *testing.T) {
	sql, params := Lambda("t").Eq("a", 1).Update(nil)
	if sql != "" || params != nil {
		t.Errorf("Update(nil) = %q, %v; want empty", sql, params)
	}
}

func TestLambdaInsertEmpty(t *testing.T) {
	cc := map[string]func() (string, map[string]any){
		"nil":      func() (string, map[string]any) { return Lambda("t").Insert(nil) },
		"空的批量":     func() (string, map[string]any) { return Lambda("t").InsertMany(nil) },
		"没有表":      func() (string, map[string]any) { return Lambda("").Insert(map[string]any{"a": 1}) },
		"冲突更新 nil": func() (string, map[string]any) { return Lambda("t").InsertOnDuplicateMap(nil, nil) },
		"空的有序更新":   func() (string, map[string]any) { return Lambda("t").UpdateOrdered(nil) },
	}
	for name, build := range cc {
		t.Run(name, func(t *testing.T) {
			if sql, params := build(); sql != "" || params != nil {
				t.Errorf("got %q, %v; want empty", sql, params)
			}
		})
	}
}

func TestLambdaParamConflict(t *testing.T) {
	t.Run("自定义参数覆盖已绑定的值", func(t *testing.T) {
		q := Lambda("t").Eq("a", 1).Apply("`x` = :arg0", map[string]any{"arg0": 5})
		if !errors.Is(q.Err(), ErrParamConflict) {
			t.Fatalf("Err() = %v, want ErrParamConflict", q.Err())
		}
		fmt.Println(q.Err())
		if sql, params := q.Query(); sql != "" || params != nil {
			t.Errorf("Query() = %q, %v; want empty", sql, params)
		}
		for name, render := range map[string]func() (string, map[string]any){
			"count":  q.QueryCount,
			"delete": q.Delete,
			"update": func() (string, map[string]any) { return q.Update(map[string]any{"b": 1}) },
			"insert": func() (string, map[string]any) { return q.Insert(map[string]any{"b": 1}) },
		} {
			if sql, _ := render(); sql != "" {
				t.Errorf("%s = %q; want empty", name, sql)
			}
		}
	})

	t.Run("嵌套里的冲突", func(t *testing.T) {
		q := Lambda("t").Eq("a", 1).Nested(func(n *LambdaQuery) {
			n.Apply("`x` = :arg0", map[string]any{"arg0": 5})
		})
		if !errors.Is(q.Err(), ErrParamConflict) {
			t.Fatalf("Err() = %v, want ErrParamConflict", q.Err())
		}
	})

	t.Run("同名同值不算冲突", func(t *testing.T) {
		q := Lambda("t").
			Apply("`a` > :n", map[string]any{"n": []int{1}}).
			Apply("`b` < :n", map[string]any{"n": []int{1}})
		if q.Err() != nil {
			t.Fatalf("Err() = %v", q.Err())
		}
		if sql, _ := q.Query(); sql != "SELECT * FROM `t` WHERE `a` > :n AND `b` < :n" {
			t.Errorf("Query() = %q", sql)
		}
	})
}

func TestLambdaWhereSegment(t *testing.T) {
	q := Lambda("t").Eq("a", 1)
	w := q.WhereSegment()
	w.AddSegment(AND)
	w.AddSegment(SqlText("x = 1"))

	sql, _ := q.Query()
	if sql != "SELECT * FROM `t` WHERE `a` = :arg0" {
		t.Errorf("query changed after WhereSegment mutation: %q", sql)
	}
	got, err := w.NoFirstSqlSegment()
	if err != nil {
		t.Fatal(err)
	}
	if got != "`a` = :arg0 AND x = 1" {
		t.Errorf("WhereSegment() = %q", got)
	}
}

func TestLambdaValuesIsCopy(t *testing.T) {
	q := Lambda("t").Eq("a", 1)
	_, params := q.Query()
	params["arg0"] = 2
	params["other"] = 3
	if diff := cmp.Diff(map[string]any{"arg0": 1}, q.Values()); diff != "" {
		t.Errorf("Values() leaked mutation (-want +got):\n%s", diff)
	}
}

func TestColumnNameHandler(t *testing.T) {
	cc := map[string]string{
		"":         "",
		"age":      "`age`",
		"u.age":    "u.`age`",
		"db.u.age": "db.u.`age`",
		"`age`":    "`age`",
		"u.`age`":  "u.`age`",
		"*":        "*",
		"u.*":      "u.*",
		"123":      "123",
		"'abc'":    "'abc'",
		"COUNT(*)": "COUNT(*)",
		"a AS b":   "a AS b",
		"  name ":  "`name`",
	}
	for in, want := range cc {
		if got := ColumnNameHandler(in); got != want {
			t.Errorf("ColumnNameHandler(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestColumns(t *testing.T) {
	got := Columns{"id", " ", "u.name", "*"}.SqlSegment()
	if got != "`id`, u.`name`, *" {
		t.Errorf("Columns.SqlSegment() = %q", got)
	}
}

func TestFunc(t *testing.T) {
	cc := []struct {
		got, want string
	}{
		{Count(""), "COUNT(*)"},
		{Count("id"), "COUNT(`id`)"},
		{As(Sum("u.age"), "total"), "SUM(u.`age`) AS total"},
		{Max("age"), "MAX(`age`)"},
		{Min("age"), "MIN(`age`)"},
		{Distinct("city"), "DISTINCT(`city`)"},
		{IfNull("nick", "it's"), "IFNULL(`nick`, 'it''s')"},
		{IfNull("score", 0), "IFNULL(`score`, 0)"},
		{IfNull("score", nil), "IFNULL(`score`, NULL)"},
		{Round("price", 2), "ROUND(`price`, 2)"},
		{Now(), "NOW()"},
	}
	for _, c := range cc {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}

	sql, _ := Lambda("t").Select("city", As(Count("id"), "c")).GroupBy("city").Query()
	if sql != "SELECT `city`, COUNT(`id`) AS c FROM `t` GROUP BY `city`" {
		t.Errorf("Query() = %q", sql)
	}
}
