package otlp

import (
	"os"

	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	otlpCommon "go.opentelemetry.io/proto/otlp/common/v1"
	otlpRes "go.opentelemetry.io/proto/otlp/resource/v1"
)

const (
	ServiceName = "wan-publisher"

	// ResAttrPublisherName carries the publisher name on exported resources.
	ResAttrPublisherName = "wan.publisher.name"
)

func NewResource(publisher string, instanceID string) *otlpRes.Resource {
	r := &otlpRes.Resource{
		Attributes:             nil,
		DroppedAttributesCount: 0,
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	r.Attributes = append(r.Attributes, stringAttr(string(semconv.ServiceNameKey), ServiceName))
	r.Attributes = append(r.Attributes, stringAttr(string(semconv.ServiceInstanceIDKey), instanceID))
	r.Attributes = append(r.Attributes, stringAttr(string(semconv.HostNameKey), host))
	r.Attributes = append(r.Attributes, stringAttr(ResAttrPublisherName, publisher))

	return r
}

func NewScope(version string) *otlpCommon.InstrumentationScope {
	s := &otlpCommon.InstrumentationScope{
		Name:                   "wan_publisher_status",
		Version:                version,
		Attributes:             nil,
		DroppedAttributesCount: 0,
	}

	s.Attributes = append(s.Attributes, stringAttr(string(semconv.TelemetrySDKNameKey), "go"))

	return s
}

// ExtractPublisherName returns the publisher name resource attribute, or ""
// when absent.
func ExtractPublisherName(res *otlpRes.Resource) string {
	if res == nil {
		return ""
	}
	for _, attr := range res.Attributes {
		if attr.Key == ResAttrPublisherName && attr.Value != nil {
			if v, ok := attr.Value.GetValue().(*otlpCommon.AnyValue_StringValue); ok {
				return v.StringValue
			}
			return ""
		}
	}
	return ""
}

func stringAttr(key, value string) *otlpCommon.KeyValue {
	return &otlpCommon.KeyValue{
		Key:   key,
		Value: &otlpCommon.AnyValue{Value: &otlpCommon.AnyValue_StringValue{StringValue: value}},
	}
}
