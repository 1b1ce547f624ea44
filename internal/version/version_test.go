package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_PrefersLinkerValues(t *testing.T) {
	orig := [3]string{Version, GitCommit, BuildDate}
	t.Cleanup(func() { Version, GitCommit, BuildDate = orig[0], orig[1], orig[2] })

	Version, GitCommit, BuildDate = "1.4.0", "abc123", "2026-01-02T03:04:05Z"

	assert.Equal(t, Info{Version: "1.4.0", Commit: "abc123", BuildDate: "2026-01-02T03:04:05Z"}, Get())
}

func TestGet_Defaults(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.BuildDate)
}
