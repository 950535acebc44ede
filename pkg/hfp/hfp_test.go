package hfp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/hfpag/pkg/hfp"
)

func TestParsePeerID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    hfp.PeerID
		wantErr bool
	}{
		{in: "00:1A:7D:DA:71:13", want: "00:1A:7D:DA:71:13"},
		{in: "00:1a:7d:da:71:13", want: "00:1A:7D:DA:71:13"},
		{in: "00_1A_7D_DA_71_13", want: "00:1A:7D:DA:71:13"},
		{in: "00:1A:7D:DA:71", wantErr: true},
		{in: "00:1A:7D:DA:71:1", wantErr: true},
		{in: "00:1A:7D:DA:71:ZZ", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := hfp.ParsePeerID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgFeatures_Has(t *testing.T) {
	t.Parallel()

	f := hfp.AgFeatureThreeWayCalling | hfp.AgFeatureCodecNegotiation
	assert.True(t, f.Has(hfp.AgFeatureCodecNegotiation))
	assert.True(t, f.Has(hfp.AgFeatureThreeWayCalling|hfp.AgFeatureCodecNegotiation))
	assert.False(t, f.Has(hfp.AgFeatureCodecNegotiation|hfp.AgFeatureHFIndicators))
}

func TestDtmfCode_Valid(t *testing.T) {
	t.Parallel()

	for _, c := range "0123456789*#ABCD" {
		assert.True(t, hfp.DtmfCode(c).Valid(), "%q", c)
	}
	for _, c := range "EFa!x " {
		assert.False(t, hfp.DtmfCode(c).Valid(), "%q", c)
	}
}

func TestParamSets(t *testing.T) {
	t.Parallel()

	names := func(sets []hfp.CodecParams) []string {
		var out []string
		for _, s := range sets {
			out = append(out, s.Name)
		}
		return out
	}

	assert.Equal(t, []string{"S1", "D1"}, names(hfp.ParamSets(hfp.CodecCVSD, false)))
	assert.Equal(t, []string{"S4", "S1", "D1"}, names(hfp.ParamSets(hfp.CodecCVSD, true)))

	msbc := hfp.ParamSets(hfp.CodecMSBC, true)
	assert.Equal(t, []string{"T2", "T1"}, names(msbc))
	for _, s := range msbc {
		assert.Equal(t, hfp.CodecMSBC, s.Codec)
		assert.Equal(t, hfp.TransportESCO, s.Transport)
	}

	for _, s := range hfp.ParamSets(hfp.CodecLC3SWB, false) {
		assert.Equal(t, hfp.CodecLC3SWB, s.Codec, "wide-band sets carry the requested codec")
	}
	assert.Equal(t, hfp.CodecMSBC, hfp.ParamSets(hfp.CodecMSBC, false)[0].Codec,
		"retagging LC3 sets must not alter the shared table")
}

func TestCodecID(t *testing.T) {
	t.Parallel()

	assert.True(t, hfp.CodecCVSD.IsBaseline())
	assert.False(t, hfp.CodecMSBC.IsBaseline())
	assert.Equal(t, "mSBC", hfp.CodecMSBC.String())
	assert.Equal(t, "codec(9)", hfp.CodecID(9).String())
	assert.Equal(t, hfp.CodecMSBC, *hfp.CodecMSBC.Ptr())
}

func TestSignalStrength_IndicatorValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    hfp.SignalStrength
		want uint8
	}{
		{s: 0, want: 0},
		{s: hfp.SignalNone, want: 0},
		{s: hfp.SignalVeryLow, want: 2},
		{s: hfp.SignalHigh, want: 5},
		{s: hfp.SignalVeryHigh, want: 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.s.IndicatorValue(), tt.s.String())
	}
}

func TestBatteryLevel_Clamps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(3), hfp.BatteryLevel(3).Value)
	assert.Equal(t, hfp.MaxBatteryLevel, hfp.BatteryLevel(200).Value)
	assert.Equal(t, hfp.IndicatorBatteryCharge, hfp.BatteryLevel(0).Kind)
}

func TestNetworkInformation_Complete(t *testing.T) {
	t.Parallel()

	n := hfp.NetworkInformation{ServiceAvailable: hfp.Bool(true), SignalStrength: hfp.SignalLow.Ptr()}
	assert.False(t, n.Complete())
	n.Roaming = hfp.Bool(false)
	assert.True(t, n.Complete())
}

func TestCallIndicators_Changes(t *testing.T) {
	t.Parallel()

	idle := hfp.CallIndicators{}
	ringing := hfp.CallIndicators{CallSetup: hfp.CallSetupIncoming}
	active := hfp.CallIndicators{Call: 1}

	assert.Empty(t, idle.Changes(idle))
	assert.Equal(t, []hfp.Indicator{{Kind: hfp.IndicatorCallSetup, Value: hfp.CallSetupIncoming}},
		idle.Changes(ringing))
	assert.Equal(t, []hfp.Indicator{
		{Kind: hfp.IndicatorCall, Value: 1},
		{Kind: hfp.IndicatorCallSetup, Value: hfp.CallSetupNone},
	}, ringing.Changes(active), "call is reported before callsetup when answering")
}

func TestAgUpdate_Constructors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, hfp.UpdateRing, hfp.Ring("+123").Kind)
	assert.Equal(t, "+123", hfp.CallWaiting("+123").Number)
	assert.Equal(t, uint8(7), hfp.SpeakerGain(7).Gain)
	assert.Equal(t, hfp.UpdateMicrophoneGain, hfp.MicrophoneGain(1).Kind)
	assert.Nil(t, hfp.CodecSetup(nil).Codec)
	assert.Equal(t, hfp.Signal(hfp.SignalLow), hfp.IndicatorUpdate(hfp.Signal(hfp.SignalLow)).Indicator)
}
