package ffmpeg

import (
	"strings"
	"testing"
)

func TestFrameArgs(t *testing.T) {
	cpu := strings.Join(frameArgs("/v/in.mp4", 12.5, 320, ""), " ")
	want := "-ss 12.5 -i /v/in.mp4 -frames:v 1 -vf scale=320:-2 -f image2pipe -c:v mjpeg -"
	if !strings.HasSuffix(cpu, want) || strings.Contains(cpu, "vaapi") {
		t.Errorf("cpu args = %s", cpu)
	}

	hw := strings.Join(frameArgs("/v/in.mp4", 0, 640, "/dev/dri/renderD128"), " ")
	if !strings.Contains(hw, "-hwaccel vaapi -hwaccel_device /dev/dri/renderD128") ||
		!strings.Contains(hw, "-vf hwdownload,format=nv12,scale=640:-2") {
		t.Errorf("vaapi args = %s", hw)
	}
	if strings.Index(hw, "-ss") > strings.Index(hw, "-i ") {
		t.Error("seek must come before the input")
	}
}
