package drive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofleet/pkg/msgs"
)

func TestParseVelocity(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		vel  *msgs.TargetVelocity
	}{
		{"forward", []string{"0.5"}, &msgs.TargetVelocity{LinearX: 0.5}},
		{"strafe", []string{"0", "-1"}, &msgs.TargetVelocity{LinearY: -1}},
		{"turn", []string{"0", "0", "180"}, &msgs.TargetVelocity{Angular: float32(math.Pi)}},
		{"missing", nil, nil},
		{"too many", []string{"1", "2", "3", "4"}, nil},
		{"invalid", []string{"fast"}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			vel, err := ParseVelocity(tc.args)
			if tc.vel == nil {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.vel, vel)
		})
	}
}
