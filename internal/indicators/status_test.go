package indicators_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrWong99/hfpag/internal/indicators"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

func TestStatus(t *testing.T) {
	t.Parallel()

	calls := hfp.CallIndicators{Call: 1, CallHeld: hfp.CallHeldHeldAndActive}

	t.Run("complete network", func(t *testing.T) {
		t.Parallel()
		got := indicators.Status(hfp.NetworkInformation{
			ServiceAvailable: hfp.Bool(true),
			SignalStrength:   hfp.SignalMedium.Ptr(),
			Roaming:          hfp.Bool(true),
		}, 4, calls)
		assert.Equal(t, hfp.AgIndicators{Service: 1, Signal: 4, Roam: 1, BatteryLevel: 4, Calls: calls}, got)
	})

	t.Run("nothing reported", func(t *testing.T) {
		t.Parallel()
		got := indicators.Status(hfp.NetworkInformation{}, 9, hfp.CallIndicators{})
		assert.Equal(t, hfp.AgIndicators{BatteryLevel: hfp.MaxBatteryLevel}, got)
	})
}

func TestBatteryFromPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		percent uint8
		want    uint8
	}{
		{0, 0},
		{9, 0},
		{10, 1},
		{50, 3},
		{69, 3},
		{70, 4},
		{100, 5},
		{250, 5},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, indicators.BatteryFromPercent(tc.percent), "percent %d", tc.percent)
	}
}
