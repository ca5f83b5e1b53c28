package regalloc

import "container/heap"

// allocQueue orders intervals for the greedy loop: heaviest first, ties by
// ascending vreg id and then interval id so runs are reproducible.
type allocQueue struct {
	items []*interval
}

func (q *allocQueue) Len() int { return len(q.items) }

func (q *allocQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	if a.vreg != b.vreg {
		return a.vreg < b.vreg
	}
	return a.id < b.id
}

func (q *allocQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *allocQueue) Push(x any) {
	q.items = append(q.items, x.(*interval))
}

func (q *allocQueue) Pop() any {
	n := len(q.items)
	it := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return it
}

func (q *allocQueue) reset() {
	q.items = q.items[:0]
}

func (q *allocQueue) push(it *interval) {
	it.state = stateQueued
	heap.Push(q, it)
}

func (q *allocQueue) pop() *interval {
	return heap.Pop(q).(*interval)
}
