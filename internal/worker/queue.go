package worker

import "sync"

// queue は上限なしの FIFO キュー
// 受信側は全ワーカーで共有され、mu はメッセージを1件取り出す間だけ保持される
type queue struct {
	mu     sync.Mutex
	ready  *sync.Cond
	items  []message
	head   int
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// push はメッセージを末尾に追加する。クローズ済みなら false
func (q *queue) push(m message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, m)
	q.ready.Signal()
	return true
}

// closeWith は msgs を追加してから以後の push を拒否する
// 追加とクローズは同じロック内で行う
func (q *queue) closeWith(msgs ...message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, msgs...)
	q.closed = true
	q.ready.Broadcast()
	return true
}

// pop は先頭のメッセージを取り出す。空なら届くまでブロックする
func (q *queue) pop() message {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) {
		q.ready.Wait()
	}

	m := q.items[q.head]
	q.items[q.head] = message{}
	q.head++

	// 取り出し済みの領域を回収する
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= 1024 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return m
}

// len はキューに残っているメッセージ数を返す
func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
