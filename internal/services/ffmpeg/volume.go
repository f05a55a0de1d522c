package ffmpeg

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoMeasurablePeak means volumedetect produced no usable max_volume
// figure, typically because the stream is digital silence (reported as
// "-inf dB"). Such files have nothing to normalize.
var ErrNoMeasurablePeak = errors.New("no measurable peak")

// volumedetect writes its report to the log stream, e.g.
// "[Parsed_volumedetect_0 @ 0x...] max_volume: -4.2 dB".
var maxVolumeRE = regexp.MustCompile(`(?i)max_volume:\s*([-+]?inf|[-+]?\d+(?:\.\d+)?)\s*dB`)

// parseMaxVolume extracts the final max_volume figure from volumedetect
// output. "inf" (a digital-silence stream) reports not-ok.
func parseMaxVolume(output string) (float64, bool) {
	matches := maxVolumeRE.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, false
	}
	value := matches[len(matches)-1][1]
	if strings.EqualFold(strings.TrimLeft(value, "+-"), "inf") {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
