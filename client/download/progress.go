package download

import (
	"io"
	"log/slog"
	"math"
	"time"
)

// logEvery spaces out progress log lines for one transfer.
const logEvery = time.Second

// progressWriter counts bytes on their way to disk. Every write goes to
// fn; with a logger set it also logs a line per logEvery and one when
// the expected total is reached.
type progressWriter struct {
	w      io.Writer
	fn     ProgressFunc
	logger *slog.Logger

	total   int64
	written int64
	started time.Time
	logged  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.written += int64(n)

	if pw.fn != nil {
		pw.fn(pw.written, pw.total)
	}

	if pw.logger != nil {
		switch {
		case pw.total >= 0 && pw.written == pw.total:
			pw.log("download body received")
		case time.Since(pw.logged) >= logEvery:
			pw.logged = time.Now()
			pw.log("download progress")
		}
	}

	return n, err
}

func (pw *progressWriter) log(msg string) {
	elapsed := time.Since(pw.started)
	attrs := []any{
		"written", pw.written,
		"total", pw.total,
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"kib_per_sec", math.Round(float64(pw.written) / 1024 / max(elapsed.Seconds(), 0.001)),
	}
	if pw.total > 0 {
		attrs = append(attrs, "percent", math.Round(float64(pw.written)*1000/float64(pw.total))/10)
	}

	pw.logger.Info(msg, attrs...)
}
