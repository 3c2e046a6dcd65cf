package structures

// listNode is a single element of a LinkedList.
type listNode[T any] struct {
	data T
	next *listNode[T]
}

// LinkedList is a minimal singly-linked FIFO list. It is not safe for
// concurrent use; Queue wraps it with a mutex.
type LinkedList[T any] struct {
	head *listNode[T]
	tail *listNode[T]
	size int
}

// Push appends a value at the tail.
func (l *LinkedList[T]) Push(data T) {
	n := &listNode[T]{data: data}
	l.size++
	if l.head == nil {
		l.head = n
		l.tail = n
		return
	}
	l.tail.next = n
	l.tail = n
}

// PopHead removes and returns the head value. The second return is false
// when the list is empty.
func (l *LinkedList[T]) PopHead() (T, bool) {
	if l.head == nil {
		var zero T
		return zero, false
	}
	l.size--
	head := l.head
	l.head = head.next
	if l.size == 0 {
		l.tail = nil
	}
	return head.data, true
}

// Len returns the number of elements in the list.
func (l *LinkedList[T]) Len() int {
	return l.size
}
