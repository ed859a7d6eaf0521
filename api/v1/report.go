// Package v1 holds the wire format of the TrialStats report API.
//
// Reports travel as google.protobuf.Struct. Non-finite numbers are carried as the
// strings "NaN", "Infinity" and "-Infinity", the same spelling protojson uses for doubles.
package v1

import (
	"TrialStats/internal/core/model"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Number encodes v as a Value, keeping non-finite values representable in JSON.
func Number(v float64) *structpb.Value {
	switch {
	case math.IsNaN(v):
		return structpb.NewStringValue("NaN")
	case math.IsInf(v, 1):
		return structpb.NewStringValue("Infinity")
	case math.IsInf(v, -1):
		return structpb.NewStringValue("-Infinity")
	}
	return structpb.NewNumberValue(v)
}

// Float decodes a Value written by Number.
func Float(v *structpb.Value) (float64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return k.NumberValue, nil
	case *structpb.Value_StringValue:
		switch k.StringValue {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("not a number: %q", k.StringValue)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func numberList(vs []float64) *structpb.Value {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(vs))}
	for i, v := range vs {
		list.Values[i] = Number(v)
	}
	return structpb.NewListValue(list)
}

func stringList(vs []string) *structpb.Value {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(vs))}
	for i, v := range vs {
		list.Values[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(list)
}

// BandwidthToStruct encodes a bandwidth series.
func BandwidthToStruct(protocol string, b model.BandwidthSeries) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"protocol":    structpb.NewStringValue(protocol),
		"consumer_tx": numberList(b.ConsumerTX),
		"producer_tx": numberList(b.ProducerTX),
		"combined":    numberList(b.Combined),
	}}
}

// ReportToStruct encodes a full protocol report.
func ReportToStruct(r *model.Report) *structpb.Struct {
	conditions := &structpb.ListValue{}
	for _, s := range r.Conditions {
		conditions.Values = append(conditions.Values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"condition":           structpb.NewStringValue(s.Condition),
			"runs":                structpb.NewNumberValue(float64(s.Runs)),
			"loss":                Number(s.Loss),
			"received":            Number(s.ReceivedRatio()),
			"overhead":            Number(s.Overhead),
			"overhead_per_packet": Number(s.OverheadPerPacket),
			"lost_payload_bytes":  Number(s.LostPayloadBytes),
		}}))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"protocol":             structpb.NewStringValue(r.Protocol),
		"conditions":           structpb.NewListValue(conditions),
		"bandwidth_conditions": stringList(r.BandwidthConditions),
		"bandwidth":            structpb.NewStructValue(BandwidthToStruct(r.Protocol, r.Bandwidth)),
	}}
}

// ReportFromStruct decodes a report written by ReportToStruct.
func ReportFromStruct(s *structpb.Struct) (*model.Report, error) {
	f := s.GetFields()
	r := &model.Report{Protocol: f["protocol"].GetStringValue()}
	if r.Protocol == "" {
		return nil, fmt.Errorf("report has no protocol")
	}

	for _, v := range f["conditions"].GetListValue().GetValues() {
		cf := v.GetStructValue().GetFields()
		cs := model.ConditionSummary{
			Condition: cf["condition"].GetStringValue(),
			Runs:      int(cf["runs"].GetNumberValue()),
		}
		var err error
		for key, dst := range map[string]*float64{
			"loss":                &cs.Loss,
			"overhead":            &cs.Overhead,
			"overhead_per_packet": &cs.OverheadPerPacket,
			"lost_payload_bytes":  &cs.LostPayloadBytes,
		} {
			if *dst, err = Float(cf[key]); err != nil {
				return nil, fmt.Errorf("condition %s: %s: %w", cs.Condition, key, err)
			}
		}
		r.Conditions = append(r.Conditions, cs)
	}

	for _, v := range f["bandwidth_conditions"].GetListValue().GetValues() {
		r.BandwidthConditions = append(r.BandwidthConditions, v.GetStringValue())
	}

	bf := f["bandwidth"].GetStructValue().GetFields()
	var err error
	if r.Bandwidth.ConsumerTX, err = floats(bf["consumer_tx"]); err != nil {
		return nil, fmt.Errorf("consumer_tx: %w", err)
	}
	if r.Bandwidth.ProducerTX, err = floats(bf["producer_tx"]); err != nil {
		return nil, fmt.Errorf("producer_tx: %w", err)
	}
	if r.Bandwidth.Combined, err = floats(bf["combined"]); err != nil {
		return nil, fmt.Errorf("combined: %w", err)
	}
	return r, nil
}

func floats(v *structpb.Value) ([]float64, error) {
	values := v.GetListValue().GetValues()
	out := make([]float64, len(values))
	for i, item := range values {
		f, err := Float(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// ProtocolsToStruct encodes the protocol index of a batch.
func ProtocolsToStruct(b *model.Batch) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"protocols": stringList(b.Protocols()),
	}
	if b != nil {
		fields["batch_id"] = structpb.NewStringValue(b.ID)
		fields["created_at"] = structpb.NewStringValue(b.CreatedAt.UTC().Format(time.RFC3339))
	}
	return &structpb.Struct{Fields: fields}
}
