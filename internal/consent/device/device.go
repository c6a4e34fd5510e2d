// Package device classifies the visitor's device, browser, OS and locale from
// the user agent, request headers and client-reported hints. Classification
// never fails; unknown input degrades to "Unknown".
package device

import (
	"regexp"
	"strings"

	"github.com/mssola/useragent"

	"consentd/internal/consent/models"
	"consentd/pkg/platform/privacy"
)

const unknown = "Unknown"

var (
	tabletPattern  = regexp.MustCompile(`(?i)ipad|tablet|playbook|silk|kindle|nexus (7|9|10)|sm-t\d+`)
	androidPattern = regexp.MustCompile(`(?i)android`)
	mobileToken    = regexp.MustCompile(`(?i)mobile`)
	mobilePattern  = regexp.MustCompile(`(?i)mobi|iphone|ipod|android|blackberry|bb10|iemobile|opera mini|windows phone|webos`)
	desktopPattern = regexp.MustCompile(`(?i)windows nt|macintosh|mac os x|x11|linux|cros`)
)

type candidate struct {
	name   string
	tokens []string
}

// browsers is ordered: Edge and Opera carry Chrome and Safari tokens, and
// Chrome carries Safari.
var browsers = []candidate{
	{"Edge", []string{"edg/", "edge/", "edga/", "edgios/"}},
	{"Opera", []string{"opr/", "opera"}},
	{"Samsung Internet", []string{"samsungbrowser"}},
	{"Chrome", []string{"crios/", "chrome/"}},
	{"Firefox", []string{"fxios/", "firefox/"}},
	{"Safari", []string{"safari/"}},
	{"Internet Explorer", []string{"msie", "trident/"}},
}

// operatingSystems is ordered: iPad UAs mention Mac OS X and Android UAs
// mention Linux.
var operatingSystems = []candidate{
	{"Windows", []string{"windows"}},
	{"iOS", []string{"iphone", "ipad", "ipod"}},
	{"Android", []string{"android"}},
	{"macOS", []string{"mac os x", "macintosh"}},
	{"ChromeOS", []string{"cros"}},
	{"Linux", []string{"linux", "x11"}},
}

// Input gathers every signal the classifier consults.
type Input struct {
	UserAgent      string
	AcceptLanguage string
	Country        string
	ClientIP       string
	Hints          models.ClientHints
}

// Service classifies devices. It holds no state.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Classify derives device info. Valid client hints override header-derived
// values.
func (s *Service) Classify(in Input) models.DeviceInfo {
	ua := strings.TrimSpace(in.UserAgent)
	if ua == "" {
		ua = in.Hints.UserAgent
	}

	info := models.DeviceInfo{
		DeviceType: DeviceType(ua),
		Browser:    Browser(ua),
		OS:         OS(ua),
		Language:   PrimaryLanguage(in.AcceptLanguage),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
		UserAgent:  ua,
	}

	if ua != "" {
		parsed := useragent.New(ua)
		info.IsBot = parsed.Bot()
		if info.Browser == unknown {
			if name, _ := parsed.Browser(); name != "" {
				info.Browser = name
			}
		}
		if info.OS == unknown {
			if name := parsed.OSInfo().Name; name != "" {
				info.OS = name
			}
		}
	}

	if dt, ok := models.ParseDeviceType(in.Hints.DeviceType); ok {
		info.DeviceType = dt
	}
	if in.Hints.Browser != "" {
		info.Browser = in.Hints.Browser
	}
	if in.Hints.OS != "" {
		info.OS = in.Hints.OS
	}
	if in.Hints.Language != "" {
		info.Language = in.Hints.Language
	}
	if in.Hints.Country != "" {
		info.Country = in.Hints.Country
	}

	ip := in.ClientIP
	if privacy.AnonymizeIP(ip) == "" {
		ip = in.Hints.IPAddress
	}
	info.IPPrefix = privacy.AnonymizeIP(ip)
	return info
}

// DeviceType applies tablet, mobile, desktop in that order.
func DeviceType(ua string) models.DeviceType {
	switch {
	case ua == "":
		return models.DeviceUnknown
	case tabletPattern.MatchString(ua),
		androidPattern.MatchString(ua) && !mobileToken.MatchString(ua):
		return models.DeviceTablet
	case mobilePattern.MatchString(ua):
		return models.DeviceMobile
	case desktopPattern.MatchString(ua):
		return models.DeviceDesktop
	default:
		return models.DeviceUnknown
	}
}

// Browser returns the first matching browser name, or "Unknown".
func Browser(ua string) string {
	return firstMatch(ua, browsers)
}

// OS returns the first matching operating system name, or "Unknown".
func OS(ua string) string {
	return firstMatch(ua, operatingSystems)
}

func firstMatch(ua string, candidates []candidate) string {
	lower := strings.ToLower(ua)
	if lower == "" {
		return unknown
	}
	for _, c := range candidates {
		for _, token := range c.tokens {
			if strings.Contains(lower, token) {
				return c.name
			}
		}
	}
	return unknown
}

// PrimaryLanguage returns the primary subtag of the first Accept-Language
// entry, lower-cased: "en-US,en;q=0.9" yields "en".
func PrimaryLanguage(acceptLanguage string) string {
	first, _, _ := strings.Cut(acceptLanguage, ",")
	tag, _, _ := strings.Cut(first, ";")
	primary, _, _ := strings.Cut(strings.TrimSpace(tag), "-")
	primary = strings.ToLower(strings.TrimSpace(primary))
	if primary == "*" {
		return ""
	}
	return primary
}
