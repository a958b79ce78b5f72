package telemetry

import "go.opentelemetry.io/otel/attribute"

func actionTypeAttr(actionType string) attribute.KeyValue {
	return attribute.String("action_type", actionType)
}
