package storage

import (
	"io"
)

// progressReader counts bytes read and rewinds its count when the SDK seeks
// back to retry or re-sign the body.
type progressReader struct {
	r        io.ReadSeeker
	total    int64
	sent     int64
	progress ProgressFunc
}

func newProgressReader(r io.ReadSeeker, total int64, progress ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.r.Seek(offset, whence)
	if err == nil {
		p.sent = pos
	}
	return pos, err
}
