package dock_test

import (
	"testing"

	"codeberg.org/mutker/dockd/internal/dock"
	"codeberg.org/mutker/dockd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uevent(fields ...string) []byte {
	var msg []byte
	for _, f := range fields {
		msg = append(msg, f...)
		msg = append(msg, 0)
	}

	return msg
}

func TestSplitFields(t *testing.T) {
	msg := uevent("add@/devices/port0-partner", "ACTION=add", "SUBSYSTEM=typec")
	msg = append(msg, 0)

	assert.Equal(t, []string{
		"add@/devices/port0-partner",
		"ACTION=add",
		"SUBSYSTEM=typec",
	}, dock.SplitFields(msg))
	assert.Empty(t, dock.SplitFields(nil))
}

func TestDefaultMatcher(t *testing.T) {
	m, err := dock.NewPatternMatcher()
	require.NoError(t, err)

	tests := []struct {
		name   string
		fields []string
		want   bool
	}{
		{"partner add", []string{"add@/devices/platform/usb/typec/port0/port0-partner", "ACTION=add"}, true},
		{"partner remove", []string{"remove@/devices/typec/port0/port0-partner"}, true},
		{"typec devtype", []string{"change@/devices/typec/port0", "DEVTYPE=typec_port"}, true},
		{"unrelated", []string{"add@/devices/virtual/net/wlan0", "SUBSYSTEM=net"}, false},
		{"partner not at end", []string{"add@/devices/port0-partner/identity"}, false},
		// Accepted false positive: any typec_* device type matches.
		{"typec alt mode", []string{"add@/devices/port0.0", "DEVTYPE=typec_alternate_mode"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.fields))
		})
	}
}

func TestPatternMatcherCustom(t *testing.T) {
	m, err := dock.NewPatternMatcher(`^SUBSYSTEM=extcon$`)
	require.NoError(t, err)
	assert.True(t, m.Match([]string{"change@/devices/extcon0", "SUBSYSTEM=extcon"}))
	assert.False(t, m.Match([]string{"DEVTYPE=typec_port"}))

	_, err = dock.NewPatternMatcher(`(`)
	assert.True(t, errors.HasCode(err, dock.ErrInvalidPattern))
}
