package audio

import (
	"github.com/gopxl/beep/v2"
)

// bufferSeeker wraps a beep.Buffer as a StreamSeeker.
type bufferSeeker struct {
	buf *beep.Buffer
	pos int
	str beep.Streamer
}

func newBufferSeeker(buf *beep.Buffer) *bufferSeeker {
	return &bufferSeeker{buf: buf, str: buf.Streamer(0, buf.Len())}
}

func (b *bufferSeeker) Stream(out [][2]float64) (n int, ok bool) {
	n, ok = b.str.Stream(out)
	b.pos += n
	return n, ok
}

func (b *bufferSeeker) Seek(p int) error {
	p = max(0, min(p, b.buf.Len()))
	b.pos = p
	b.str = b.buf.Streamer(p, b.buf.Len())
	return nil
}

func (b *bufferSeeker) Position() int { return b.pos }
func (b *bufferSeeker) Len() int      { return b.buf.Len() }
func (b *bufferSeeker) Err() error    { return nil }

// looper repeats [start, end) count more times; a negative count loops
// forever. After the last pass it plays through to the end of the source.
type looper struct {
	s     beep.StreamSeeker
	count int
	start int
	end   int
	err   error
}

func newLooper(s beep.StreamSeeker, count, start, length int) *looper {
	l := &looper{s: s, count: count, start: start, end: start + length}
	if l.start < 0 || l.start >= s.Len() {
		l.start = 0
	}
	if length <= 0 || l.end <= l.start || l.end > s.Len() {
		l.end = s.Len()
	}
	if s.Len() == 0 {
		l.count = 0
	}
	return l
}

func (l *looper) Stream(samples [][2]float64) (n int, ok bool) {
	if l.err != nil {
		return 0, false
	}
	for len(samples) > 0 {
		toStream := len(samples)
		if l.count != 0 {
			untilEnd := l.end - l.s.Position()
			if untilEnd <= 0 {
				if l.count > 0 {
					l.count--
				}
				if err := l.s.Seek(l.start); err != nil {
					l.err = err
					return n, true
				}
				continue
			}
			toStream = min(untilEnd, toStream)
		}

		sn, sok := l.s.Stream(samples[:toStream])
		n += sn
		if sn < toStream || !sok {
			l.err = l.s.Err()
			return n, n > 0
		}
		samples = samples[sn:]
	}
	return n, true
}

func (l *looper) Err() error { return l.s.Err() }
