// Package scheduler implements the cooperative frame loop: ready tasks run
// to their next yield point, suspended tasks wait on a wake-time min-heap
// (SPEC_FULL §5; ground: the teacher's server.TaskQueue priority queue).
package scheduler

import (
	"container/heap"

	"github.com/lfmoo/scratchvm/vm"
)

// sleeperQueue is a min-heap of suspended Tasks ordered by WakeTime (§5
// sleeper heap; ground: teacher's TaskQueue, same heap.Interface shape).
type sleeperQueue []*vm.Task

func newSleeperQueue() *sleeperQueue {
	q := make(sleeperQueue, 0)
	heap.Init(&q)
	return &q
}

func (q sleeperQueue) Len() int { return len(q) }

func (q sleeperQueue) Less(i, j int) bool {
	return q[i].WakeTime.Before(q[j].WakeTime)
}

func (q sleeperQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *sleeperQueue) Push(x any) {
	*q = append(*q, x.(*vm.Task))
}

func (q *sleeperQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[0 : n-1]
	return item
}

func (q sleeperQueue) Peek() *vm.Task {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}
