package v1

import (
	"TrialStats/internal/core/model"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestNumber_NonFinite(t *testing.T) {
	assert.Equal(t, "NaN", Number(math.NaN()).GetStringValue())
	assert.Equal(t, "Infinity", Number(math.Inf(1)).GetStringValue())
	assert.Equal(t, "-Infinity", Number(math.Inf(-1)).GetStringValue())
	assert.Equal(t, 0.5, Number(0.5).GetNumberValue())

	f, err := Float(Number(math.Inf(-1)))
	require.NoError(t, err)
	assert.True(t, math.IsInf(f, -1))

	_, err = Float(structpb.NewStringValue("lots"))
	assert.Error(t, err)
	_, err = Float(structpb.NewBoolValue(true))
	assert.Error(t, err)
}

func TestReportStruct(t *testing.T) {
	in := &model.Report{
		Protocol: "lrdp",
		Conditions: []model.ConditionSummary{
			{Condition: "Normal", Runs: 2, Loss: 0.1, Overhead: 0.2, OverheadPerPacket: 12, LostPayloadBytes: 100},
			{Condition: "Horrible", Runs: 1, Loss: math.NaN(), Overhead: 0.5, OverheadPerPacket: math.Inf(1)},
		},
		BandwidthConditions: []string{"Normal"},
		Bandwidth: model.BandwidthSeries{
			ConsumerTX: []float64{0, 10},
			ProducerTX: []float64{0, math.NaN()},
			Combined:   []float64{0, math.NaN()},
		},
	}

	s := ReportToStruct(in)

	// Must survive JSON even with non-finite members.
	data, err := protojson.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"NaN"`)
	assert.Contains(t, string(data), `"Infinity"`)

	out, err := ReportFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, "lrdp", out.Protocol)
	assert.Equal(t, []string{"Normal"}, out.BandwidthConditions)
	require.Len(t, out.Conditions, 2)
	assert.Equal(t, in.Conditions[0], out.Conditions[0])
	assert.True(t, math.IsNaN(out.Conditions[1].Loss))
	assert.True(t, math.IsInf(out.Conditions[1].OverheadPerPacket, 1))
	assert.Equal(t, []float64{0, 10}, out.Bandwidth.ConsumerTX)
	assert.True(t, math.IsNaN(out.Bandwidth.Combined[1]))
}

func TestReportFromStruct_NoProtocol(t *testing.T) {
	_, err := ReportFromStruct(&structpb.Struct{})
	assert.Error(t, err)
}

func TestProtocolsToStruct(t *testing.T) {
	b := &model.Batch{ID: "b1", Reports: []*model.Report{{Protocol: "tcp"}, {Protocol: "lrdp"}}}

	s := ProtocolsToStruct(b)
	assert.Equal(t, "b1", s.Fields["batch_id"].GetStringValue())
	list := s.Fields["protocols"].GetListValue().GetValues()
	require.Len(t, list, 2)
	assert.Equal(t, "tcp", list[0].GetStringValue())

	empty := ProtocolsToStruct(nil)
	assert.Empty(t, empty.Fields["protocols"].GetListValue().GetValues())
}
