// Package versions tracks the sync protocol version this agent speaks.
package versions

import "github.com/Masterminds/semver/v3"

// SupportedProtocolVersion is the newest sync protocol the agent understands
const SupportedProtocolVersion = "1.2.0"

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// Non-semver inputs fall back to a plain string comparison.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)

	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}

	return newSemver.GreaterThan(oldSemver)
}

// IsCompatible reports whether a server announcing serverVersion shares the
// agent's major protocol version
func IsCompatible(serverVersion string) bool {
	server, err := semver.NewVersion(serverVersion)
	if err != nil {
		return false
	}
	supported := semver.MustParse(SupportedProtocolVersion)
	return server.Major() == supported.Major()
}
