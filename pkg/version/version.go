// Package version 记录库版本与对象流格式版本。
package version

import (
	"github.com/blang/semver/v4"
)

var (
	// Version 为库版本，可通过 -ldflags "-X .../pkg/version.rawVersion=x.y.z" 覆盖。
	Version = semver.MustParse(rawVersion)

	// WireFormat 为对象流格式版本。格式不兼容的修改需要提升主版本号。
	WireFormat = semver.MustParse("1.0.0")
)

var rawVersion = "0.3.0"

// String 返回库版本字符串。
func String() string {
	return Version.String()
}

// CompatibleWireFormat 判断 v 描述的流格式是否能被当前版本读取。
// 主版本一致且不高于当前格式版本时视为兼容。
func CompatibleWireFormat(v string) bool {
	other, err := semver.ParseTolerant(v)
	if err != nil {
		return false
	}
	return other.Major == WireFormat.Major && other.LTE(WireFormat)
}
