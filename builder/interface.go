package builder

// Expr 带参数的条件表达式, 本身也是一个 Segment
type Expr interface {
	Segment
	Values() map[string]any
}

type Condition struct {
	S     string
	Value map[string]any
}

func (c Condition) SqlSegment() string {
	return c.S
}

func (c Condition) String() string {
	return c.S
}

func (c Condition) Values() map[string]any {
	return c.Value
}
