package plan

import (
	"math"
	"strings"
)

// GainEpsilon is the band around zero gain inside which a re-encode buys
// nothing audible and the file is passed through untouched.
const GainEpsilon = 0.05

// Action states whether the audio payload is re-encoded.
type Action string

const (
	// ActionPassthrough leaves the file as-is; no ffmpeg run at all.
	ActionPassthrough Action = "passthrough"
	// ActionEncode re-encodes the main audio stream with the gain applied.
	ActionEncode Action = "re-encode"
)

// Input is the tuple a plan is computed from. All fields come from probing;
// the planner itself performs no I/O.
type Input struct {
	PeakDBFS   float64
	TargetDBFS float64
	// Codec is the ffprobe codec_name of the main audio stream.
	Codec    string
	Channels int
	// SourceBitrateBPS is the main stream's bitrate; 0 when unknown.
	SourceBitrateBPS int64
	// Extension is the lowercased container extension including the dot.
	Extension string

	// MinBitrateBPS is the configured floor for lossy re-encodes (stereo
	// baseline, scaled by channel count).
	MinBitrateBPS int64
	// Faststart requests streaming-start metadata placement for mp4-family
	// containers; it forces an encode pass even at zero gain.
	Faststart bool
}

// Plan is the ephemeral per-job encode decision.
type Plan struct {
	Action Action
	GainDB float64
	// Encoder is the ffmpeg encoder for the main audio stream.
	Encoder string
	// BitrateBPS is 0 for lossless encoders, which take no bitrate flag.
	BitrateBPS int64
	ForceMP4   bool
	Faststart  bool
}

// encoderForCodec maps ffprobe codec names to ffmpeg encoder names.
var encoderForCodec = map[string]string{
	"ac3":       "ac3",
	"eac3":      "eac3",
	"aac":       "aac",
	"mp3":       "libmp3lame",
	"opus":      "libopus",
	"flac":      "flac",
	"alac":      "alac",
	"pcm_s16le": "pcm_s16le",
	"pcm_s24le": "pcm_s24le",
}

// remapCodec redirects very high-bitrate formats whose encoders are rarely
// built into ffmpeg toward a widely compatible codec.
var remapCodec = map[string]string{
	"dts":    "ac3",
	"truehd": "ac3",
}

// losslessEncoders take no bitrate flag.
var losslessEncoders = map[string]struct{}{
	"flac":      {},
	"alac":      {},
	"pcm_s16le": {},
	"pcm_s24le": {},
}

const fallbackEncoder = "aac"

var mp4Family = map[string]struct{}{
	".mp4": {},
	".m4v": {},
	".mov": {},
}

// Compute derives the normalization plan for one file. It is a pure function
// of its input, which keeps the codec and bitrate policy unit-testable
// without media files.
func Compute(in Input) Plan {
	gain := in.TargetDBFS - in.PeakDBFS

	_, isMP4Family := mp4Family[strings.ToLower(in.Extension)]
	if math.Abs(gain) <= GainEpsilon && !(in.Faststart && isMP4Family) {
		return Plan{Action: ActionPassthrough, GainDB: 0}
	}

	encoder := Encoder(in.Codec)
	var bitrate int64
	if _, lossless := losslessEncoders[encoder]; !lossless {
		bitrate = TargetBitrate(in.SourceBitrateBPS, in.MinBitrateBPS, in.Channels)
	}

	return Plan{
		Action:     ActionEncode,
		GainDB:     gain,
		Encoder:    encoder,
		BitrateBPS: bitrate,
		ForceMP4:   strings.EqualFold(in.Extension, ".m4v"),
		Faststart:  in.Faststart && isMP4Family,
	}
}

// Encoder resolves the ffmpeg encoder used when re-encoding a stream of the
// given codec, applying the compatibility remap and the aac fallback.
func Encoder(codec string) string {
	cleaned := strings.ToLower(strings.TrimSpace(codec))
	if mapped, ok := remapCodec[cleaned]; ok {
		cleaned = mapped
	}
	if encoder, ok := encoderForCodec[cleaned]; ok {
		return encoder
	}
	return fallbackEncoder
}

// TargetBitrate returns max(source, floor) where the floor scales with the
// channel count relative to stereo, so a 5.1 stream gets three times the
// configured stereo minimum.
func TargetBitrate(sourceBPS, minBPS int64, channels int) int64 {
	floor := minBPS
	if channels > 2 {
		floor = minBPS * int64(channels) / 2
	}
	if sourceBPS > floor {
		return sourceBPS
	}
	return floor
}
