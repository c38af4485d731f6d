package nft

import "fmt"

// Platform is the platform tag written into NFT sidecars.
type Platform string

const (
	Linux   Platform = "linux"
	Darwin  Platform = "darwin"
	Windows Platform = "windows"
)

// PlatformFromHostOS maps a host OS name to the sidecar platform tag.
// Both "macos" and Go's "darwin" name the Mach-O platform.
func PlatformFromHostOS(hostOS string) (Platform, error) {
	switch hostOS {
	case "linux":
		return Linux, nil
	case "macos", "darwin":
		return Darwin, nil
	case "windows":
		return Windows, nil
	default:
		return "", &InvalidInputError{Reason: fmt.Sprintf("unsupported host OS %q", hostOS)}
	}
}

// ParsePlatform validates a sidecar platform tag.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case Linux, Darwin, Windows:
		return p, nil
	default:
		return "", &InvalidInputError{Reason: fmt.Sprintf("unknown platform %q", s)}
	}
}

func (p Platform) String() string { return string(p) }
