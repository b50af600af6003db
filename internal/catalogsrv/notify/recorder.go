package notify

import (
	"context"
	"sync"
)

// Recorder keeps every notification in memory. Err, when set, is returned
// from every call after recording.
type Recorder struct {
	dispatcher
	r *recordSender
}

type recordSender struct {
	mu    sync.Mutex
	items []Notification
	err   error
}

func (r *recordSender) send(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return r.err
}

func NewRecorder() *Recorder {
	r := &recordSender{}
	return &Recorder{dispatcher: dispatcher{r}, r: r}
}

// Fail makes later calls return err.
func (r *Recorder) Fail(err error) {
	r.r.mu.Lock()
	defer r.r.mu.Unlock()
	r.r.err = err
}

// Notifications returns a copy of what was recorded.
func (r *Recorder) Notifications() []Notification {
	r.r.mu.Lock()
	defer r.r.mu.Unlock()
	return append([]Notification(nil), r.r.items...)
}

// Kinds returns the kinds of the recorded notifications in order.
func (r *Recorder) Kinds() []string {
	var kinds []string
	for _, n := range r.Notifications() {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}
