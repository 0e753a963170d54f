package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaults() Info {
	return Info{CommitHash: "dev", BuildTime: "unknown", Version: "dev"}
}

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/teranos/opgen", Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}

	info := fromBuildInfo(defaults(), bi)
	assert.Equal(t, "v1.4.0", info.Version)
	assert.Equal(t, "0123456789abcdef", info.CommitHash)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.BuildTime)
	assert.Equal(t, "opgen v1.4.0 (commit 0123456, built 2026-01-02T03:04:05Z)", info.String())
}

func TestFromBuildInfoKeepsLinkerValues(t *testing.T) {
	linked := Info{CommitHash: "abc", BuildTime: "today", Version: "v2.0.0"}
	bi := &debug.BuildInfo{
		Main:     debug.Module{Version: "v1.0.0"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "fff"}},
	}
	assert.Equal(t, linked, fromBuildInfo(linked, bi))
}

func TestFromBuildInfoDevel(t *testing.T) {
	bi := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
	assert.Equal(t, "dev", fromBuildInfo(defaults(), bi).Version)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc", Info{CommitHash: "abc"}.Short())
	assert.Equal(t, "1234567", Info{CommitHash: "123456789"}.Short())
}
