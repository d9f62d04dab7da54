package builder

import (
	"reflect"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/pkg/errors"
)

// ErrInvalidRange 下标越界, Sub / NoFirstSqlSegment 使用
var ErrInvalidRange = errors.New("segment index out of range")

// Segment 可以渲染成一段 sql 的片段
type Segment interface {
	SqlSegment() string
}

// Keyword 关键字片段, 例如 WHERE / AND / OR
type Keyword string

func (k Keyword) SqlSegment() string {
	return string(k)
}

const (
	WHERE    Keyword = "WHERE"
	AND      Keyword = "AND"
	OR       Keyword = "OR"
	GROUP_BY Keyword = "GROUP BY"
	HAVING   Keyword = "HAVING"
	ORDER_BY Keyword = "ORDER BY"
	LEFT     Keyword = "("
	RIGHT    Keyword = ")"
)

// SqlText 原样输出的 sql 文本
type SqlText string

func (t SqlText) SqlSegment() string {
	return string(t)
}

// SegmentFunc 延迟渲染的片段
type SegmentFunc func() string

func (f SegmentFunc) SqlSegment() string {
	return f()
}

// MergeSqlSegment 把多个 Segment 汇聚成一个
// 只能追加, 不能删除或重排; 非并发安全, 一条语句的构造过程内使用
type MergeSqlSegment struct {
	segments []Segment
}

// NewMergeSqlSegment 复制传入的 segments, 不过滤 nil
func NewMergeSqlSegment(segments ...Segment) *MergeSqlSegment {
	return MergeSegments(segments)
}

// MergeSegments 同 NewMergeSqlSegment, 接收切片
func MergeSegments(segments []Segment) *MergeSqlSegment {
	m := &MergeSqlSegment{segments: make([]Segment, len(segments))}
	copy(m.segments, segments)
	return m
}

// AddSegment 追加到末尾, nil 直接忽略
func (m *MergeSqlSegment) AddSegment(segment Segment) {
	if isNilSegment(segment) {
		return
	}
	m.segments = append(m.segments, segment)
}

func (m *MergeSqlSegment) SqlSegment() string {
	return renderSegments(m.segments)
}

func (m *MergeSqlSegment) String() string {
	return m.SqlSegment()
}

// NoFirstSqlSegment 去掉第一个片段后渲染, 一般用来去掉开头的 AND / OR / WHERE
func (m *MergeSqlSegment) NoFirstSqlSegment() (string, error) {
	if len(m.segments) == 0 {
		return "", errors.Wrapf(ErrInvalidRange, "skip first of %d segments", len(m.segments))
	}
	return renderSegments(m.segments[1:]), nil
}

// Sub 从 from 开始(包含)复制出一个新的 MergeSqlSegment, 与原来的互不影响
func (m *MergeSqlSegment) Sub(from int) (*MergeSqlSegment, error) {
	if from < 0 || from > len(m.segments) {
		return nil, errors.Wrapf(ErrInvalidRange, "sub from %d of %d segments", from, len(m.segments))
	}
	return MergeSegments(m.segments[from:]), nil
}

func (m *MergeSqlSegment) IsEmpty() bool {
	return len(m.segments) == 0
}

func (m *MergeSqlSegment) Len() int {
	return len(m.segments)
}

func renderSegments(segments []Segment) string {
	parts := slice.Map(segments, func(_ int, s Segment) string {
		return s.SqlSegment()
	})
	var bf strings.Builder
	for _, p := range parts {
		bf.WriteString(p)
		bf.WriteString(" ")
	}
	return strings.TrimSpace(bf.String())
}

// isNilSegment 条件构造经常返回一个类型化的 nil 指针, 也算 nil
// nil 的切片, map 同样忽略, 例如 Columns(nil)
func isNilSegment(segment Segment) bool {
	if segment == nil {
		return true
	}
	v := reflect.ValueOf(segment)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}
