// Package device describes the client behind a request from its
// User-Agent, for login audit logs.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Info is the parsed client description.
type Info struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// Describe parses a User-Agent header.
func Describe(userAgent string) Info {
	if userAgent == "" {
		return Info{}
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	info := Info{
		Browser: strings.TrimSpace(browser),
		OS:      strings.TrimSpace(ua.OS()),
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
	if info.Mobile {
		if platform := strings.TrimSpace(ua.Platform()); platform != "" {
			info.OS = platform
		}
	}
	return info
}

// DisplayName renders the info as "Browser on OS".
func (i Info) DisplayName() string {
	if i.Browser == "" && i.OS == "" {
		return "Unknown Device"
	}
	browser, os := i.Browser, i.OS
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}

// ParseUserAgent is Describe(userAgent).DisplayName().
func ParseUserAgent(userAgent string) string {
	return Describe(userAgent).DisplayName()
}
