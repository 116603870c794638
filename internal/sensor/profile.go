package sensor

import (
	"fmt"
	"strings"
)

// StreamType identifies one sensor output stream
type StreamType uint8

const (
	StreamAny StreamType = iota
	StreamDepth
	StreamColor
	StreamInfrared
	StreamFisheye
	StreamGyro
	StreamAccel
	StreamConfidence
)

var streamTypeNames = map[StreamType]string{
	StreamAny:        "any",
	StreamDepth:      "depth",
	StreamColor:      "color",
	StreamInfrared:   "infrared",
	StreamFisheye:    "fisheye",
	StreamGyro:       "gyro",
	StreamAccel:      "accel",
	StreamConfidence: "confidence",
}

// String returns the string representation of StreamType
func (s StreamType) String() string {
	if name, ok := streamTypeNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStreamType parses a stream type name as used in configuration files
func ParseStreamType(name string) (StreamType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for st, n := range streamTypeNames {
		if n == name {
			return st, nil
		}
	}
	// Common aliases
	switch name {
	case "ir":
		return StreamInfrared, nil
	case "rgb":
		return StreamColor, nil
	}
	return StreamAny, fmt.Errorf("unknown stream type: %q", name)
}

// ProfileKind tags the variant a StreamProfile carries
type ProfileKind uint8

const (
	KindVideo ProfileKind = iota
	KindMotion
)

// String returns the string representation of ProfileKind
func (k ProfileKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindMotion:
		return "motion"
	default:
		return "unknown"
	}
}

// VideoProfile holds the pixel dimensions of a video stream
type VideoProfile struct {
	Width  int
	Height int
}

// StreamProfile is an immutable stream descriptor. Only video profiles carry
// dimensions; use AsVideo to access them.
type StreamProfile struct {
	stream    StreamType
	framerate int
	kind      ProfileKind
	video     VideoProfile
}

// NewVideoProfile creates a profile for a pixel stream
func NewVideoProfile(stream StreamType, width, height, framerate int) StreamProfile {
	return StreamProfile{
		stream:    stream,
		framerate: framerate,
		kind:      KindVideo,
		video:     VideoProfile{Width: width, Height: height},
	}
}

// NewMotionProfile creates a profile for a non-pixel stream (IMU samples etc.)
func NewMotionProfile(stream StreamType, framerate int) StreamProfile {
	return StreamProfile{
		stream:    stream,
		framerate: framerate,
		kind:      KindMotion,
	}
}

// StreamType returns the stream this profile describes
func (p StreamProfile) StreamType() StreamType {
	return p.stream
}

// Framerate returns the nominal frames per second
func (p StreamProfile) Framerate() int {
	return p.framerate
}

// Kind returns the profile variant
func (p StreamProfile) Kind() ProfileKind {
	return p.kind
}

// AsVideo returns the video dimensions, or false for non-video profiles
func (p StreamProfile) AsVideo() (VideoProfile, bool) {
	if p.kind != KindVideo {
		return VideoProfile{}, false
	}
	return p.video, true
}

// String renders the profile as e.g. "infrared 640x480@30"
func (p StreamProfile) String() string {
	if v, ok := p.AsVideo(); ok {
		return fmt.Sprintf("%s %dx%d@%d", p.stream, v.Width, v.Height, p.framerate)
	}
	return fmt.Sprintf("%s %s@%d", p.stream, p.kind, p.framerate)
}
