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

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Sink receives decoded flow events. Within one datagram, events arrive
// in the order their records appear on the wire.
type Sink func(timestamp time.Time, event *Event)

// DecoderOptions configures a Decoder. The zero value of each option
// falls back to the documented default.
type DecoderOptions struct {
	// Versions is the subset of {5, 9, 10} the decoder accepts.
	Versions []uint16

	// CacheTTL is the lifetime of unused templates and samplers.
	CacheTTL time.Duration

	// SwitchedTimesFromUptime keeps first_switched/last_switched as raw
	// boot-relative milliseconds instead of converting to wall clock.
	SwitchedTimesFromUptime bool

	// Definitions is the path to an extra NetFlow v9 field dictionary,
	// merged into the option category.
	Definitions string

	// IPFIXDefinitions is the path to an extra IPFIX field dictionary.
	IPFIXDefinitions string

	// CacheSavePath is the directory the IPFIX template cache file is
	// written to; empty disables persistence.
	CacheSavePath string

	// IncludeFlowsetId adds the flowset id to each emitted v9 and IPFIX
	// event. v5 events never carry it.
	IncludeFlowsetId bool
}

var DefaultDecoderOptions = DecoderOptions{
	Versions: []uint16{5, 9, 10},
	CacheTTL: 4000 * time.Second,
}

// ipfixCacheFile is the file name of the persisted IPFIX template cache
// inside CacheSavePath.
const ipfixCacheFile = "ipfix_templates.json"

// Decoder is the stateful NetFlow v5/v9/IPFIX decoder. It owns the field
// dictionary, the per-protocol template registries and the sampler
// table. Decode may be called concurrently from multiple goroutines; the
// registries serialize template visibility, everything else is
// shared-nothing per datagram.
type Decoder struct {
	dictionary *Dictionary

	v9Templates    *TemplateRegistry
	ipfixTemplates *TemplateRegistry
	samplers       *SamplerTable

	options  DecoderOptions
	versions map[uint16]struct{}

	// validator, when set, inspects every resolved template before it is
	// cached.
	validator TemplateValidator

	mu            sync.Mutex
	warnedMissing map[TemplateKey]struct{}
}

// NewDecoder loads the field dictionaries and restores a persisted IPFIX
// template cache if one is configured and present. Dictionary problems
// are fatal; an unreadable cache file is not.
func NewDecoder(ctx context.Context, opts DecoderOptions) (*Decoder, error) {
	if len(opts.Versions) == 0 {
		opts.Versions = DefaultDecoderOptions.Versions
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultDecoderOptions.CacheTTL
	}

	dictionary, err := NewDictionary(opts.Definitions, opts.IPFIXDefinitions)
	if err != nil {
		return nil, err
	}

	cachePath := ""
	if opts.CacheSavePath != "" {
		cachePath = filepath.Join(opts.CacheSavePath, ipfixCacheFile)
	}

	d := &Decoder{
		dictionary:     dictionary,
		options:        opts,
		versions:       make(map[uint16]struct{}, len(opts.Versions)),
		samplers:       NewSamplerTable(opts.CacheTTL),
		warnedMissing:  make(map[TemplateKey]struct{}),
		v9Templates:    NewTemplateRegistry(opts.CacheTTL, dictionary.ResolveV9, ""),
		ipfixTemplates: NewTemplateRegistry(opts.CacheTTL, dictionary.ResolveIPFIX, cachePath),
	}
	for _, v := range opts.Versions {
		d.versions[v] = struct{}{}
	}

	d.ipfixTemplates.Load(ctx)

	return d, nil
}

// WithValidator installs a template validator consulted on every
// registration.
func (d *Decoder) WithValidator(v TemplateValidator) *Decoder {
	d.validator = v
	return d
}

// Persist rewrites the IPFIX template cache file to the current live
// set.
func (d *Decoder) Persist(ctx context.Context) error {
	return d.ipfixTemplates.Persist(ctx)
}

// Decode parses one datagram from host and emits the decoded flow events
// through sink. Malformed datagrams are logged and dropped; the returned
// error is informational and never fatal to the caller's receive loop.
func (d *Decoder) Decode(ctx context.Context, payload []byte, host string, sink Sink) (err error) {
	start := time.Now()
	defer func() {
		DurationMicroseconds.Observe(float64(time.Since(start).Nanoseconds()) / 1000)
		if err != nil {
			ErrorsTotal.Inc()
		}
	}()

	logger := FromContext(ctx, "host", host)

	if len(payload) < 2 {
		err = TruncatedPacket(0, len(payload), 2)
		logger.Error(err, "dropping datagram")
		return err
	}

	version := binary.BigEndian.Uint16(payload[0:2])
	if _, ok := d.versions[version]; !ok {
		err = UnsupportedVersion(version)
		logger.Error(err, "dropping datagram")
		return err
	}
	PacketsTotal.WithLabelValues(strconv.Itoa(int(version))).Inc()

	switch version {
	case 5:
		err = d.decodeV5(ctx, payload, host, sink)
	case 9:
		err = d.decodeV9(ctx, payload, host, sink)
	case 10:
		err = d.decodeIPFIX(ctx, payload, host, sink)
	}
	if err != nil {
		logger.Error(err, "dropping datagram", "version", version)
	}
	return err
}

func (d *Decoder) decodeV9(ctx context.Context, payload []byte, host string, sink Sink) error {
	logger := FromContext(ctx)

	h, err := decodeV9Header(payload)
	if err != nil {
		return err
	}

	sets, err := splitFlowSets(9, payload[v9HeaderSize:])
	if err != nil {
		return err
	}

	et := exportTime{uptime: h.Uptime, sec: h.UnixSec}

	for _, set := range sets {
		switch {
		case set.Id == v9TemplateSetId:
			records, err := parseTemplateSet(set.Body, false)
			if err != nil {
				return err
			}
			d.registerAll(ctx, d.v9Templates, host, h.SourceId, records)
		case set.Id == v9OptionsTemplateSetId:
			records, err := parseV9OptionsTemplateSet(set.Body)
			if err != nil {
				return err
			}
			d.registerAll(ctx, d.v9Templates, host, h.SourceId, records)
		case set.Id >= firstDataSetId:
			header := func(ev *Event) {
				ev.Set("version", uint64(9))
				ev.Set("flow_seq_num", uint64(h.Seq))
			}
			d.decodeDataSet(ctx, 9, d.v9Templates, host, h.SourceId, set, et, header, sink)
		default:
			logger.Info("ignoring reserved flowset id", "flowset_id", set.Id, "version", 9)
		}
	}
	return nil
}

func (d *Decoder) decodeIPFIX(ctx context.Context, payload []byte, host string, sink Sink) error {
	logger := FromContext(ctx)

	h, err := decodeIPFIXHeader(payload)
	if err != nil {
		return err
	}
	if int(h.Length) > len(payload) {
		return TruncatedPacket(10, len(payload), int(h.Length))
	}
	if int(h.Length) < ipfixHeaderSize {
		// the header length field must at least cover the header itself
		return TruncatedPacket(10, int(h.Length), ipfixHeaderSize)
	}

	sets, err := splitFlowSets(10, payload[ipfixHeaderSize:h.Length])
	if err != nil {
		return err
	}

	et := exportTime{sec: h.ExportTime}

	for _, set := range sets {
		switch {
		case set.Id == ipfixTemplateSetId:
			records, err := parseTemplateSet(set.Body, true)
			if err != nil {
				return err
			}
			d.registerAll(ctx, d.ipfixTemplates, "", h.DomainId, records)
		case set.Id == ipfixOptionsSetId:
			records, err := parseIPFIXOptionsTemplateSet(set.Body)
			if err != nil {
				return err
			}
			d.registerAll(ctx, d.ipfixTemplates, "", h.DomainId, records)
		case set.Id >= firstDataSetId:
			header := func(ev *Event) {
				ev.Set("version", uint64(10))
			}
			d.decodeDataSet(ctx, 10, d.ipfixTemplates, host, h.DomainId, set, et, header, sink)
		default:
			logger.Info("ignoring reserved flowset id", "flowset_id", set.Id, "version", 10)
		}
	}
	return nil
}

// registerAll registers the template records of one template flowset.
// Templates that do not resolve reject individually; the rest of the
// flowset still registers.
func (d *Decoder) registerAll(ctx context.Context, registry *TemplateRegistry, host string, sourceId uint32, records []templateRecord) {
	logger := FromContext(ctx)
	for _, record := range records {
		key := NewTemplateKey(host, sourceId, record.Id)
		if _, err := registry.Register(ctx, key, record.Fields, d.validator); err != nil {
			TemplatesRejected.Inc()
			logger.Error(err, "rejecting template", "template_id", record.Id, "source_id", sourceId)
			continue
		}
		// a fresh template may supersede a previously missing one
		d.mu.Lock()
		delete(d.warnedMissing, key)
		d.mu.Unlock()
	}
}

// decodeDataSet fetches the resolving template and decodes the data
// flowset's records into events. Flowset-level problems are logged and
// drop only the flowset, never the datagram.
func (d *Decoder) decodeDataSet(ctx context.Context, version uint16, registry *TemplateRegistry, host string, sourceId uint32, set flowSet, et exportTime, header func(*Event), sink Sink) {
	logger := FromContext(ctx)

	key := NewTemplateKey("", sourceId, set.Id)
	if version == 9 {
		key.Host = host
	}

	template, err := registry.Fetch(ctx, key)
	if err != nil {
		MissingTemplates.Inc()
		d.mu.Lock()
		_, warned := d.warnedMissing[key]
		d.warnedMissing[key] = struct{}{}
		d.mu.Unlock()
		if !warned {
			logger.Info("dropping data flowset without template", "template_id", set.Id, "source_id", sourceId, "version", version)
		}
		return
	}

	records, err := decodeRecords(template, set.Body)
	if err != nil {
		logger.Error(err, "dropping data flowset", "template_id", set.Id, "source_id", sourceId)
		return
	}

	for _, fields := range records {
		event := NewEvent()
		event.Set("@timestamp", et.Timestamp())
		header(event)
		if d.options.IncludeFlowsetId {
			event.Set("flowset_id", uint64(set.Id))
		}
		for _, fv := range fields {
			event.Set(fv.name, normalizeValue(version, fv.name, fv.value, et, d.options.SwitchedTimesFromUptime))
		}

		if d.routeSampler(event, host, sourceId) {
			continue
		}
		d.decorateSampled(event, host, sourceId)

		EventsTotal.WithLabelValues(strconv.Itoa(int(version))).Inc()
		sink(et.Time(), event)
	}
}

type fieldValue struct {
	name  string
	value interface{}
}

// decodeRecords splits a data flowset body into records along the
// template. Fixed-width templates divide the body evenly, tolerating up
// to 3 bytes of padding; templates with variable-length fields stream
// records until the body is exhausted.
func decodeRecords(template *Template, body []byte) ([][]fieldValue, error) {
	width, fixed := template.Width()

	if fixed {
		if width <= 0 {
			return nil, fmt.Errorf("template %d has no width", template.Id)
		}
		if width > len(body) {
			return nil, LengthMismatch(template.Id, width, len(body))
		}
		if rem := len(body) % width; rem > 3 {
			return nil, LengthMismatch(template.Id, width, len(body))
		}

		count := len(body) / width
		records := make([][]fieldValue, 0, count)
		r := bytes.NewReader(body)
		for i := 0; i < count; i++ {
			fields, err := decodeRecord(template, r)
			if err != nil {
				return nil, err
			}
			records = append(records, fields)
		}
		return records, nil
	}

	records := make([][]fieldValue, 0, 1)
	r := bytes.NewReader(body)
	for r.Len() > 0 {
		fields, err := decodeRecord(template, r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// trailing padding
				break
			}
			return nil, err
		}
		records = append(records, fields)
	}
	return records, nil
}

func decodeRecord(template *Template, r io.Reader) ([]fieldValue, error) {
	fields := make([]fieldValue, 0, len(template.Specs))
	for _, spec := range template.Specs {
		value, err := spec.Decode(r)
		if err != nil {
			return nil, err
		}
		if spec.Name() == "" || value == nil {
			continue
		}
		fields = append(fields, fieldValue{name: spec.Name(), value: value})
	}
	return fields, nil
}

// routeSampler detects sampler option records and routes them into the
// sampler table instead of emitting them.
func (d *Decoder) routeSampler(event *Event, host string, sourceId uint32) bool {
	id, okId := event.Get("flow_sampler_id")
	mode, okMode := event.Get("flow_sampler_mode")
	interval, okInterval := event.Get("flow_sampler_random_interval")
	if !okId || !okMode || !okInterval {
		return false
	}

	samplerId, ok := id.(uint64)
	if !ok {
		return false
	}
	m, _ := mode.(uint64)
	iv, _ := interval.(uint64)

	d.samplers.Add(SamplerKey{Host: host, SourceId: sourceId, SamplerId: samplerId}, Sampler{
		Mode:           m,
		RandomInterval: iv,
	})
	return true
}

// decorateSampled fills sampling parameters into records that reference
// a known sampler, never overwriting fields the record already carries.
func (d *Decoder) decorateSampled(event *Event, host string, sourceId uint32) {
	id, ok := event.Get("flow_sampler_id")
	if !ok {
		return
	}
	samplerId, ok := id.(uint64)
	if !ok {
		return
	}

	sampler, ok := d.samplers.Get(SamplerKey{Host: host, SourceId: sourceId, SamplerId: samplerId})
	if !ok {
		return
	}
	event.SetDefault("sampling_algorithm", sampler.Mode)
	event.SetDefault("sampling_interval", sampler.RandomInterval)
}
