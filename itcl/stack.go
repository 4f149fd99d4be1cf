package itcl

// Stack is a LIFO over a slice. The registry keeps its definition, call-context
// and constructor stacks in these.
type Stack[T any] struct {
	items []T
}

func (s *Stack[T]) Push(v T) {
	s.items = append(s.items, v)
}

// Pop removes the top entry. Popping an empty stack returns ErrStackEmpty.
func (s *Stack[T]) Pop() (T, error) {
	var zero T
	if len(s.items) == 0 {
		return zero, ErrStackEmpty
	}
	top := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = zero
	s.items = s.items[:len(s.items)-1]
	return top, nil
}

func (s *Stack[T]) Peek() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

func (s *Stack[T]) Len() int {
	return len(s.items)
}

// Values returns a copy of the entries, bottom first.
func (s *Stack[T]) Values() []T {
	return append([]T(nil), s.items...)
}
