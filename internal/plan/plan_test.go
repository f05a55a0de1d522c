package plan_test

import (
	"math"
	"testing"

	"evenkeel/internal/plan"
)

const tolerance = 1e-9

func TestComputeGain(t *testing.T) {
	p := plan.Compute(plan.Input{
		PeakDBFS:      -6.0,
		TargetDBFS:    -0.1,
		Codec:         "ac3",
		Channels:      2,
		MinBitrateBPS: 192000,
		Extension:     ".mkv",
	})
	if p.Action != plan.ActionEncode {
		t.Fatalf("expected encode action, got %s", p.Action)
	}
	if math.Abs(p.GainDB-5.9) > tolerance {
		t.Fatalf("gain = %v, want 5.9", p.GainDB)
	}
}

func TestComputeAttenuation(t *testing.T) {
	p := plan.Compute(plan.Input{
		PeakDBFS:      0.3,
		TargetDBFS:    -0.1,
		Codec:         "aac",
		Channels:      2,
		MinBitrateBPS: 192000,
		Extension:     ".mkv",
	})
	if p.Action != plan.ActionEncode {
		t.Fatalf("clipping file must be re-encoded, got %s", p.Action)
	}
	if math.Abs(p.GainDB-(-0.4)) > tolerance {
		t.Fatalf("gain = %v, want -0.4", p.GainDB)
	}
}

func TestComputePassthroughAtTarget(t *testing.T) {
	p := plan.Compute(plan.Input{
		PeakDBFS:      -0.1,
		TargetDBFS:    -0.1,
		Codec:         "ac3",
		Channels:      6,
		MinBitrateBPS: 192000,
		Extension:     ".mkv",
	})
	if p.Action != plan.ActionPassthrough {
		t.Fatalf("expected passthrough, got %s", p.Action)
	}
	if p.GainDB != 0 {
		t.Fatalf("passthrough gain must be zero, got %v", p.GainDB)
	}
}

func TestComputeFaststartForcesEncode(t *testing.T) {
	in := plan.Input{
		PeakDBFS:      -0.1,
		TargetDBFS:    -0.1,
		Codec:         "aac",
		Channels:      2,
		MinBitrateBPS: 192000,
		Faststart:     true,
	}

	in.Extension = ".mp4"
	if p := plan.Compute(in); p.Action != plan.ActionEncode || !p.Faststart {
		t.Fatalf("faststart remux should force an encode for mp4, got %+v", p)
	}

	// Faststart is meaningless for matroska; zero gain stays passthrough.
	in.Extension = ".mkv"
	if p := plan.Compute(in); p.Action != plan.ActionPassthrough {
		t.Fatalf("mkv at target must pass through, got %+v", p)
	}
}

func TestComputeSurroundScenario(t *testing.T) {
	// 2 GB mkv, AC3 5.1 at -4.2 dBFS, target -0.1 dBFS.
	p := plan.Compute(plan.Input{
		PeakDBFS:         -4.2,
		TargetDBFS:       -0.1,
		Codec:            "ac3",
		Channels:         6,
		SourceBitrateBPS: 448000,
		MinBitrateBPS:    192000,
		Extension:        ".mkv",
	})
	if p.Action != plan.ActionEncode {
		t.Fatalf("expected encode, got %s", p.Action)
	}
	if math.Abs(p.GainDB-4.1) > tolerance {
		t.Fatalf("gain = %v, want 4.1", p.GainDB)
	}
	if p.Encoder != "ac3" {
		t.Fatalf("encoder = %q, want ac3", p.Encoder)
	}
	// Floor scaled for 6 channels: 192k * 3 = 576k, above the 448k source.
	if p.BitrateBPS != 576000 {
		t.Fatalf("bitrate = %d, want 576000", p.BitrateBPS)
	}
}

func TestComputeM4VForcesMP4Muxer(t *testing.T) {
	p := plan.Compute(plan.Input{
		PeakDBFS:      -3.0,
		TargetDBFS:    -0.1,
		Codec:         "aac",
		Channels:      2,
		MinBitrateBPS: 192000,
		Extension:     ".m4v",
		Faststart:     true,
	})
	if !p.ForceMP4 {
		t.Fatal("m4v output must force the mp4 muxer")
	}
	if !p.Faststart {
		t.Fatal("faststart should carry into the plan for m4v")
	}
}

func TestComputeLosslessOmitsBitrate(t *testing.T) {
	p := plan.Compute(plan.Input{
		PeakDBFS:      -8.0,
		TargetDBFS:    -0.1,
		Codec:         "flac",
		Channels:      2,
		MinBitrateBPS: 192000,
		Extension:     ".mkv",
	})
	if p.Encoder != "flac" {
		t.Fatalf("encoder = %q, want flac", p.Encoder)
	}
	if p.BitrateBPS != 0 {
		t.Fatalf("lossless plan must carry no bitrate, got %d", p.BitrateBPS)
	}
}

func TestEncoderMapping(t *testing.T) {
	cases := []struct {
		codec string
		want  string
	}{
		{"ac3", "ac3"},
		{"eac3", "eac3"},
		{"mp3", "libmp3lame"},
		{"opus", "libopus"},
		{"dts", "ac3"},
		{"truehd", "ac3"},
		{"DTS", "ac3"},
		{"vorbis", "aac"},
		{"", "aac"},
	}
	for _, tc := range cases {
		if got := plan.Encoder(tc.codec); got != tc.want {
			t.Fatalf("Encoder(%q) = %q, want %q", tc.codec, got, tc.want)
		}
	}
}

func TestTargetBitrate(t *testing.T) {
	cases := []struct {
		source   int64
		min      int64
		channels int
		want     int64
	}{
		{0, 192000, 2, 192000},
		{256000, 192000, 2, 256000},
		{448000, 192000, 6, 576000},
		{768000, 192000, 6, 768000},
		{128000, 192000, 1, 192000},
		{0, 192000, 8, 768000},
	}
	for _, tc := range cases {
		got := plan.TargetBitrate(tc.source, tc.min, tc.channels)
		if got != tc.want {
			t.Fatalf("TargetBitrate(%d, %d, %d) = %d, want %d", tc.source, tc.min, tc.channels, got, tc.want)
		}
	}
}
