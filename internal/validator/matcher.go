package validator

import "github.com/zsiec/framegate/internal/sensor"

// ProfilesEqual reports whether two descriptors identify the same video
// stream. Profiles without pixel dimensions never match anything.
func ProfilesEqual(a, b sensor.StreamProfile) bool {
	va, ok := a.AsVideo()
	if !ok {
		return false
	}
	vb, ok := b.AsVideo()
	if !ok {
		return false
	}

	return a.Framerate() == b.Framerate() &&
		va.Width == vb.Width &&
		va.Height == vb.Height &&
		a.StreamType() == b.StreamType()
}

func matchesAny(profile sensor.StreamProfile, requests []sensor.StreamProfile) bool {
	for _, r := range requests {
		if ProfilesEqual(profile, r) {
			return true
		}
	}
	return false
}
