package models

// Platform identifies a supported social target. The set is closed;
// anything outside it is rejected with ErrUnknownPlatform.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTiktok    Platform = "tiktok"
	PlatformYoutube   Platform = "youtube"
	PlatformTwitter   Platform = "twitter"
)

func Platforms() []Platform {
	return []Platform{PlatformInstagram, PlatformTiktok, PlatformYoutube, PlatformTwitter}
}

func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTiktok, PlatformYoutube, PlatformTwitter:
		return true
	}
	return false
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", ErrUnknownPlatform
	}
	return p, nil
}
