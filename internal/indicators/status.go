package indicators

import "github.com/MrWong99/hfpag/pkg/hfp"

// Status assembles the full indicator set answered to an indicator status
// query. Fields the network has not reported yet read as 0.
func Status(net hfp.NetworkInformation, battery uint8, calls hfp.CallIndicators) hfp.AgIndicators {
	st := hfp.AgIndicators{
		BatteryLevel: min(battery, hfp.MaxBatteryLevel),
		Calls:        calls,
	}
	if net.ServiceAvailable != nil {
		st.Service = hfp.Service(*net.ServiceAvailable).Value
	}
	if net.SignalStrength != nil {
		st.Signal = net.SignalStrength.IndicatorValue()
	}
	if net.Roaming != nil {
		st.Roam = hfp.Roam(*net.Roaming).Value
	}
	return st
}

// BatteryFromPercent maps a 0–100 charge percentage onto the 0–5 battchg
// range, rounding to the nearest step. Values above 100 read as full.
func BatteryFromPercent(percent uint8) uint8 {
	p := min(int(percent), 100)
	return uint8((p*int(hfp.MaxBatteryLevel) + 50) / 100)
}
