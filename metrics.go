/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package netflow

import "github.com/prometheus/client_golang/prometheus"

var (
	PacketsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "decoder_decoded_packets_total",
		Help: "Total number of decoded packets per protocol version",
	}, []string{"version"})
	ErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "decoder_errors_total",
		Help: "Total number of errors in decoder",
	})
	DurationMicroseconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "decoder_duration_microseconds",
		Help:    "Duration of decoding per packet in microseconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "decoder_events_total",
		Help: "Total number of flow events emitted per protocol version",
	}, []string{"version"})
	TemplatesRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "decoder_templates_registered_total",
		Help: "Total number of templates registered into the registry",
	})
	TemplatesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "decoder_templates_expired_total",
		Help: "Total number of templates dropped after their TTL passed",
	})
	TemplatesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "decoder_templates_rejected_total",
		Help: "Total number of templates rejected during resolution or validation",
	})
	MissingTemplates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "decoder_missing_templates_total",
		Help: "Total number of data flowsets dropped for want of a template",
	})
	SamplersRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "decoder_samplers_registered_total",
		Help: "Total number of sampler option records written to the sampler table",
	})
)

// RegisterMetrics registers all package collectors with r, e.g. the
// default prometheus registerer of an embedding collector binary.
func RegisterMetrics(r prometheus.Registerer) {
	r.MustRegister(
		PacketsTotal,
		ErrorsTotal,
		DurationMicroseconds,
		EventsTotal,
		TemplatesRegistered,
		TemplatesExpired,
		TemplatesRejected,
		MissingTemplates,
		SamplersRegistered,
		UDPPacketsTotal,
		UDPErrorsTotal,
		UDPPacketBytes,
	)
}

var (
	UDPPacketsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "udp_listener_packets_total",
		Help: "Total number of packets received via UDP listener",
	})
	UDPErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "udp_listener_errors_total",
		Help: "Total number of errors encountered in the UDP listener",
	})
	UDPPacketBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "udp_listener_packet_bytes",
		Help: "Total number of bytes read in the UDP listener",
	})
)
