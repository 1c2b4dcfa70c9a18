package device

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// BarProgress returns a ProgressFactory rendering a byte progress bar to w.
func BarProgress(w io.Writer) ProgressFactory {
	return func(total int64, title string) Progress {
		return progressbar.NewOptions64(
			total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("copying "+title),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
	}
}
