//go:build !opus

package audioconv

import (
	"errors"
	"io"
)

func decodeOggOpus(io.ReadSeeker) (PCM, error) {
	return PCM{}, errors.New("opus support not compiled in (build with -tags opus)")
}
