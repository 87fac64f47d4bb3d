package domain

import (
	"regexp"
	"strings"
)

// DeviceType selects a rate-limit tier and nothing else.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceVR      DeviceType = "vr"
)

var mobileUA = regexp.MustCompile(`(?i)Android|iPhone|iPad|iPod|Mobile`)

// DetectDeviceType classifies a user-agent string; anything unrecognised is desktop.
func DetectDeviceType(userAgent string) DeviceType {
	if mobileUA.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// ParseDeviceType normalizes d, returning desktop for unknown values.
func ParseDeviceType(d string) DeviceType {
	switch DeviceType(strings.ToLower(strings.TrimSpace(d))) {
	case DeviceMobile:
		return DeviceMobile
	case DeviceVR:
		return DeviceVR
	}
	return DeviceDesktop
}
