// Package ffprobe extracts stream information using the ffprobe binary.
package ffprobe

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// StreamInfo contains the video stream properties the analyzer needs.
type StreamInfo struct {
	Width     int
	Height    int
	FrameRate float64
	CodecName string
	PixFmt    string
}

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Packets []ffprobePacket `json:"packets"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
}

type ffprobePacket struct {
	Flags string `json:"flags"`
}

// GetStreamInfo returns the first video stream's properties.
func GetStreamInfo(inputPath string) (*StreamInfo, error) {
	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-select_streams", "v:0",
		"-show_streams",
		inputPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info := &StreamInfo{
			Width:     stream.Width,
			Height:    stream.Height,
			CodecName: stream.CodecName,
			PixFmt:    stream.PixFmt,
		}
		info.FrameRate = parseRate(stream.AvgFrameRate)
		if info.FrameRate == 0 {
			info.FrameRate = parseRate(stream.RFrameRate)
		}
		if info.Width == 0 || info.Height == 0 {
			return nil, fmt.Errorf("video stream in %s has no geometry", inputPath)
		}
		return info, nil
	}

	return nil, fmt.Errorf("no video stream found in %s", inputPath)
}

// GetKeyframeIndices returns the frame indices of keyframe packets in
// decode order, from the packet flag table.
func GetKeyframeIndices(inputPath string) ([]int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-select_streams", "v:0",
		"-show_entries", "packet=flags",
		inputPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe packets: %w", err)
	}

	var keyframes []int
	for i, pkt := range probe.Packets {
		if strings.Contains(pkt.Flags, "K") {
			keyframes = append(keyframes, i)
		}
	}
	return keyframes, nil
}

// parseRate parses an ffprobe rational like "30000/1001".
func parseRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}
