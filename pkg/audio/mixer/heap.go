package mixer

import "github.com/elaichix/NubaGuard-AI/pkg/audio"

type queued struct {
	clip     *audio.Clip
	priority int
	seq      uint64
}

// clipQueue orders clips by priority, then by arrival. Use it through
// container/heap.
type clipQueue []queued

func (q clipQueue) Len() int      { return len(q) }
func (q clipQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q clipQueue) Less(i, j int) bool {
	if q[i].priority == q[j].priority {
		return q[i].seq < q[j].seq
	}
	return q[i].priority > q[j].priority
}

func (q *clipQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *clipQueue) Pop() any {
	n := len(*q) - 1
	last := (*q)[n]
	*q = (*q)[:n]
	return last
}
