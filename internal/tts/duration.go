package tts

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/tcolgate/mp3"

	"github.com/jo-hoe/clipcast/internal/common"
)

// ErrNoFrames is returned when the payload contains no decodable MP3 frames.
var ErrNoFrames = errors.New("no mp3 frames found")

// MeasureDuration sums the playing time of all MP3 frames in audio.
// Trailing garbage after at least one valid frame is tolerated.
func MeasureDuration(audio []byte) (float64, error) {
	dec := mp3.NewDecoder(bytes.NewReader(audio))
	var frame mp3.Frame
	var skipped int

	total := 0.0
	frames := 0
	for {
		err := dec.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return 0, ErrNoFrames
		}
		total += frame.Duration().Seconds()
		frames++
	}
	if frames == 0 {
		return 0, ErrNoFrames
	}
	return total, nil
}

// EstimateDuration derives seconds from the script's word count at the
// standard speaking rate. Used only when frame measurement fails.
func EstimateDuration(scriptText string) float64 {
	words := len(strings.Fields(scriptText))
	return float64(words) / common.WordsPerMinute * 60
}
