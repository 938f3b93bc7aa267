package interview

import (
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/zhouzirui/interview-room/backend/internal/observability"
	"github.com/zhouzirui/interview-room/backend/internal/service/tagstream"
)

// commitReader forwards body fragments to the caller while accumulating
// them. At EOF it commits the accumulated text and releases the room; on an
// error or an early Close the text is dropped and the room is released
// without changes. Later Recv calls repeat the failure instead of EOF.
//
// Recv and Close must not be called concurrently.
type commitReader struct {
	src     tagstream.Reader
	op      string
	roomID  string
	buf     strings.Builder
	commit  func(content string)
	release func()
	once    sync.Once
	done    bool
	err     error
}

func newCommitReader(e *entry, op string, src tagstream.Reader, commit func(content string)) *commitReader {
	return &commitReader{
		src:     src,
		op:      op,
		roomID:  e.room.ID,
		commit:  commit,
		release: e.release,
	}
}

func (r *commitReader) Recv() (string, error) {
	if r.done {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	chunk, err := r.src.Recv()
	if errors.Is(err, io.EOF) {
		r.commit(r.buf.String())
		r.finish()
		return "", io.EOF
	}
	if err != nil {
		r.abort(err)
		return "", err
	}
	r.buf.WriteString(chunk)
	return chunk, nil
}

func (r *commitReader) Close() {
	if !r.done {
		r.abort(nil)
	}
}

func (r *commitReader) abort(err error) {
	observability.StreamAborted(r.op)
	r.err = err
	if r.err == nil {
		r.err = ErrStreamClosed
	}
	if err != nil {
		log.Printf("[room] %s for room=%s failed mid-stream after %d bytes: %v", r.op, r.roomID, r.buf.Len(), err)
	} else {
		log.Printf("[room] %s for room=%s closed before completion, discarding %d bytes", r.op, r.roomID, r.buf.Len())
	}
	r.finish()
}

func (r *commitReader) finish() {
	r.done = true
	r.once.Do(func() {
		r.src.Close()
		r.release()
	})
}
