// Package tagstream separates hidden reasoning, the control block and visible
// text inside a single model token stream.
//
// The expected layout is
//
//	[<think>reasoning</think>] [<ctrl>{json}</ctrl>] visible text
//
// Delimiters may straddle fragment boundaries. Output never depends on how the
// upstream happened to fragment its text, and reasoning is never forwarded.
package tagstream

import (
	"errors"
	"io"
	"strings"

	"github.com/zhouzirui/interview-room/backend/internal/service/ai/control"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
	ctrlOpen   = "<ctrl>"
	ctrlClose  = "</ctrl>"
)

var (
	// ErrMissingControl means the stream ended before a <ctrl> block opened.
	ErrMissingControl = errors.New("missing control block")
	// ErrUnterminatedControl means the stream ended inside a <ctrl> block.
	ErrUnterminatedControl = errors.New("unterminated control block")
)

// Reader is a pull-based sequence of text fragments terminated by io.EOF.
// *schema.StreamReader[string] satisfies it.
type Reader interface {
	Recv() (string, error)
	Close()
}

type state int

const (
	scanThinkOpen state = iota
	inThink
	scanCtrlOpen
	inCtrl
	streamBody
)

// FilterHidden drops every <think>...</think> span wherever it starts and
// forwards everything else as it arrives. Only a tail that could begin a
// marker is held back. Reasoning left open at EOF is dropped.
func FilterHidden(src Reader) Reader {
	return &filterReader{src: src}
}

// ExtractControl consumes the optional think span and the mandatory control
// block, then returns the decoded mapping and a reader over the visible body.
// Think spans inside the body are dropped as in FilterHidden. It blocks only
// while the upstream is still producing the prefix.
func ExtractControl(src Reader) (control.Mapping, Reader, error) {
	p := &parser{}
	for p.state != streamBody {
		chunk, err := src.Recv()
		if errors.Is(err, io.EOF) {
			src.Close()
			if p.state == inCtrl {
				return nil, nil, ErrUnterminatedControl
			}
			return nil, nil, ErrMissingControl
		}
		if err != nil {
			src.Close()
			return nil, nil, err
		}
		p.feed(chunk)
	}
	return p.mapping, FilterHidden(&bodyReader{src: src, pending: p.rest}), nil
}

// parser holds the prefix state machine used by ExtractControl.
type parser struct {
	state   state
	buf     string
	mapping control.Mapping
	rest    string
}

func (p *parser) feed(chunk string) {
	p.buf += chunk
	for {
		switch p.state {
		case scanThinkOpen:
			t := strings.Index(p.buf, thinkOpen)
			c := strings.Index(p.buf, ctrlOpen)
			switch {
			case t >= 0 && (c < 0 || t < c):
				p.buf = p.buf[t+len(thinkOpen):]
				p.state = inThink
			case c >= 0:
				p.buf = p.buf[c+len(ctrlOpen):]
				p.state = inCtrl
			default:
				p.buf = keepTail(p.buf, len(thinkOpen)-1)
				return
			}
		case inThink:
			end := strings.Index(p.buf, thinkClose)
			if end < 0 {
				p.buf = keepTail(p.buf, len(thinkClose)-1)
				return
			}
			p.buf = p.buf[end+len(thinkClose):]
			p.state = scanCtrlOpen
		case scanCtrlOpen:
			start := strings.Index(p.buf, ctrlOpen)
			if start < 0 {
				p.buf = keepTail(p.buf, len(ctrlOpen)-1)
				return
			}
			p.buf = p.buf[start+len(ctrlOpen):]
			p.state = inCtrl
		case inCtrl:
			end := strings.Index(p.buf, ctrlClose)
			if end < 0 {
				return
			}
			p.mapping = control.Decode(p.buf[:end])
			p.rest = p.buf[end+len(ctrlClose):]
			p.buf = ""
			p.state = streamBody
		default:
			return
		}
	}
}

// keepTail drops discarded text but keeps enough bytes for a marker that may
// straddle the next fragment.
func keepTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// filterReader lazily applies FilterHidden.
type filterReader struct {
	src     Reader
	state   state
	buf     string
	pending string
	eof     bool
}

func (r *filterReader) Recv() (string, error) {
	for {
		if r.pending != "" {
			out := r.pending
			r.pending = ""
			return out, nil
		}
		if r.eof {
			return "", io.EOF
		}
		chunk, err := r.src.Recv()
		if errors.Is(err, io.EOF) {
			r.eof = true
			if r.state == scanThinkOpen {
				r.pending = r.buf
			}
			r.buf = ""
			continue
		}
		if err != nil {
			return "", err
		}
		r.feed(chunk)
	}
}

func (r *filterReader) feed(chunk string) {
	r.buf += chunk
	for {
		switch r.state {
		case scanThinkOpen:
			if start := strings.Index(r.buf, thinkOpen); start >= 0 {
				r.pending += r.buf[:start]
				r.buf = r.buf[start+len(thinkOpen):]
				r.state = inThink
				continue
			}
			held := markerPrefixLen(r.buf, thinkOpen)
			r.pending += r.buf[:len(r.buf)-held]
			r.buf = r.buf[len(r.buf)-held:]
			return
		default:
			end := strings.Index(r.buf, thinkClose)
			if end < 0 {
				r.buf = keepTail(r.buf, len(thinkClose)-1)
				return
			}
			r.buf = r.buf[end+len(thinkClose):]
			r.state = scanThinkOpen
		}
	}
}

func (r *filterReader) Close() {
	r.src.Close()
}

// markerPrefixLen returns the length of the longest suffix of s that is a
// proper prefix of marker.
func markerPrefixLen(s, marker string) int {
	for n := min(len(s), len(marker)-1); n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}

// bodyReader emits a buffered remainder and then forwards upstream fragments
// as they arrive.
type bodyReader struct {
	src     Reader
	pending string
	eof     bool
}

func (b *bodyReader) Recv() (string, error) {
	if b.pending != "" {
		out := b.pending
		b.pending = ""
		return out, nil
	}
	for !b.eof {
		chunk, err := b.src.Recv()
		if errors.Is(err, io.EOF) {
			b.eof = true
			break
		}
		if err != nil {
			return "", err
		}
		if chunk != "" {
			return chunk, nil
		}
	}
	return "", io.EOF
}

func (b *bodyReader) Close() {
	b.src.Close()
}

// Collect drains r and closes it.
func Collect(r Reader) (string, error) {
	defer r.Close()
	var b strings.Builder
	for {
		chunk, err := r.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}

// StripHidden applies FilterHidden to a complete text.
func StripHidden(text string) string {
	out, _ := Collect(FilterHidden(&sliceReader{items: []string{text}}))
	return out
}

type sliceReader struct {
	items []string
}

func (s *sliceReader) Recv() (string, error) {
	if len(s.items) == 0 {
		return "", io.EOF
	}
	out := s.items[0]
	s.items = s.items[1:]
	return out, nil
}

func (s *sliceReader) Close() {}
