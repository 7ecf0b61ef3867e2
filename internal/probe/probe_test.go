package probe

import (
	"errors"
	"math"
	"testing"
)

const sampleHEVC = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "hevc",
      "codec_type": "video",
      "profile": "Main",
      "width": 3840,
      "height": 2160,
      "pix_fmt": "yuvj420p",
      "duration": "64.290000",
      "tags": { "language": "eng", "handler_name": "VideoHandle" }
    }
  ]
}`

const sampleVP9 = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "vp9",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "tags": { "DURATION": "00:00:15.066000000" }
    }
  ]
}`

const sampleMKVH264 = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1280,
      "height": 720,
      "tags": { "DURATION-eng": "01:02:03.500000000" }
    }
  ]
}`

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"00:00:15.066000000", 15.066},
		{"00:01:04.29", 64.29},
		{"01:00:00", 3600},
		{"10:30:00.5", 37800.5},
		{"  00:00:01.000000000\n", 1},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimestamp(tc.in)
			if err != nil {
				t.Fatalf("ParseTimestamp: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseTimestamp_Malformed(t *testing.T) {
	bad := []string{
		"",
		"15.066",
		"00:15.066",
		"00:00:",
		"00:00:15.",
		"aa:00:15",
		"00:61:00",
		"00:00:60.5",
		"-1:00:00",
		"00:00:15.0.6",
		"00:00:00:15",
	}
	for _, in := range bad {
		t.Run(in, func(t *testing.T) {
			got, err := ParseTimestamp(in)
			if err == nil {
				t.Fatalf("expected error, got %v", got)
			}
			if !IsMetadata(err) {
				t.Errorf("want *MetadataError, got %T", err)
			}
		})
	}
}

func TestParse_NumericDuration(t *testing.T) {
	md, err := Parse([]byte(sampleHEVC))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !md.IsKnown() {
		t.Fatal("expected known metadata")
	}
	if md.Codec != "hevc" || md.Width != 3840 || md.Height != 2160 {
		t.Errorf("got %+v", md)
	}
	if md.Duration != 64.29 {
		t.Errorf("duration: got %v, want 64.29", md.Duration)
	}
}

func TestParse_TagDurationCodec(t *testing.T) {
	md, err := Parse([]byte(sampleVP9))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if math.Abs(md.Duration-15.066) > 1e-9 {
		t.Errorf("duration: got %v, want 15.066", md.Duration)
	}
}

func TestParse_TagFallbackForOtherCodecs(t *testing.T) {
	md, err := Parse([]byte(sampleMKVH264))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if math.Abs(md.Duration-3723.5) > 1e-9 {
		t.Errorf("duration: got %v, want 3723.5", md.Duration)
	}
}

func TestParse_SeveralDurationTags(t *testing.T) {
	const twoTags = `{"streams":[{"codec_name":"vp9","width":1920,"height":1080,
	  "tags":{"DURATION-jpn":"00:00:20.000000000","DURATION-eng":"00:00:15.000000000"}}]}`

	for i := 0; i < 20; i++ {
		md, err := Parse([]byte(twoTags))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if md.Duration != 15 {
			t.Fatalf("run %d: duration %v, want 15 from DURATION-eng", i, md.Duration)
		}
	}

	md, err := Parse([]byte(`{"streams":[{"codec_name":"vp9","width":1,"height":1,
	  "tags":{"DURATION-eng":"00:00:15.000000000","DURATION":"00:00:09.000000000"}}]}`))
	if err != nil || md.Duration != 9 {
		t.Errorf("plain DURATION should win: %v %v", md.Duration, err)
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"invalid json", `{invalid`},
		{"no streams", `{"streams":[]}`},
		{"missing codec", `{"streams":[{"width":1,"height":1,"duration":"1.0"}]}`},
		{"missing width", `{"streams":[{"codec_name":"h264","height":1,"duration":"1.0"}]}`},
		{"missing height", `{"streams":[{"codec_name":"h264","width":1,"duration":"1.0"}]}`},
		{"missing duration", `{"streams":[{"codec_name":"h264","width":1,"height":1}]}`},
		{"bad duration", `{"streams":[{"codec_name":"h264","width":1,"height":1,"duration":"N/A"}]}`},
		{"NaN duration", `{"streams":[{"codec_name":"h264","width":1,"height":1,"duration":"NaN"}]}`},
		{"Inf duration", `{"streams":[{"codec_name":"h264","width":1,"height":1,"duration":"Inf"}]}`},
		{"negative infinity", `{"streams":[{"codec_name":"h264","width":1,"height":1,"duration":"-Infinity"}]}`},
		{"overflowing duration", `{"streams":[{"codec_name":"h264","width":1,"height":1,"duration":"1e400"}]}`},
		{"negative duration", `{"streams":[{"codec_name":"h264","width":1,"height":1,"duration":"-1.5"}]}`},
		{"vp9 without tag", `{"streams":[{"codec_name":"vp9","width":1,"height":1,"duration":"3.0"}]}`},
		{"vp9 truncated tag", `{"streams":[{"codec_name":"vp9","width":1,"height":1,"tags":{"DURATION":"00:00"}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			md, err := Parse([]byte(tc.json))
			if err == nil {
				t.Fatalf("expected error, got %+v", md)
			}
			var me *MetadataError
			if !errors.As(err, &me) {
				t.Errorf("want *MetadataError, got %T: %v", err, err)
			}
			if md.IsKnown() {
				t.Error("failed parse must yield unknown metadata")
			}
		})
	}
}

func TestUnknownMetadata(t *testing.T) {
	md := UnknownMetadata()
	if md.IsKnown() {
		t.Error("unknown variant reports known")
	}
	if md.Codec != UnknownCodec || md.Duration != 0 {
		t.Errorf("got %+v", md)
	}
	if md.String() != UnknownCodec {
		t.Errorf("String: got %q", md.String())
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New("mediainfo", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
	p, err := New(BackendVidio, "")
	if err != nil {
		t.Fatalf("New(vidio): %v", err)
	}
	if _, ok := p.(*Vidio); !ok {
		t.Errorf("got %T, want *Vidio", p)
	}
}

func TestInvocationError_Unwrap(t *testing.T) {
	base := errors.New("exit status 1")
	err := error(&InvocationError{Path: "/x.mp4", Err: base})
	if !errors.Is(err, base) {
		t.Error("Unwrap should expose the cause")
	}
	if !IsInvocation(err) {
		t.Error("IsInvocation = false")
	}
}
