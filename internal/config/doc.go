// Package config loads oidnpkg settings from the environment.
//
// rez passes the build context through REZ_BUILD_* variables; oidnpkg adds
// its own OIDNPKG_* knobs for the download and logging behaviour:
//
//	REZ_BUILD_PROJECT_VERSION   release version, "0.0.0" when unset
//	REZ_BUILD_SOURCE_PATH       package source (optional package.lua)
//	REZ_BUILD_PATH              build directory
//	REZ_BUILD_INSTALL_PATH      install directory
//	OIDNPKG_USER_AGENT          HTTP User-Agent, "Mozilla/5.0"
//	OIDNPKG_RETRIES             retries after a failed attempt, 3
//	OIDNPKG_TIMEOUT             per-attempt HTTP timeout, 5m
//	OIDNPKG_LOG_LEVEL           trace, debug, info, warn, error or off
//	OIDNPKG_LOG_JSON            emit JSON log lines
//	OIDNPKG_URL_TEMPLATE        overrides the descriptor's download URL template
//
// Empty variables count as unset.
package config
