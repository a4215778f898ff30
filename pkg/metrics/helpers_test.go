package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue(), nil
				}
			}
		}
		return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetHistogram().GetSampleSum(), nil
				}
			}
		}
		return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}
