package builder

// Lambda 以 tbl 为主表开始构造
func Lambda(tbl string) *LambdaQuery {
	return newLambda(tbl, &argNames{}, map[string]any{})
}

func newLambda(tbl string, args *argNames, values map[string]any) *LambdaQuery {
	return &LambdaQuery{
		table:     tbl,
		where:     NewMergeSqlSegment(),
		having:    NewMergeSqlSegment(),
		connector: AND,
		args:      args,
		values:    values,
	}
}
