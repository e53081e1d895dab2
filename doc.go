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

/*
Package for decoding Cisco NetFlow v5, NetFlow v9 and IPFIX (RFC 7011) datagrams into
structured flow-record events.

# Overview

NetFlow v9 and IPFIX are self-describing binary formats: exporters first announce
*templates* that define the layout of the flow records they are going to send, and then
send data flowsets that can only be decoded against the previously announced template.
The decoder in this package therefore is stateful. It keeps a time-expiring registry of
templates per exporter, resolves every template against YAML field dictionaries into a
concrete binary layout, and decodes subsequent data flowsets into events of named,
normalized values. NetFlow v5 has a fixed layout and needs none of this machinery, but
emits events of the same shape, so it is included as a fast path.

A Decoder is fed one datagram at a time together with the sending exporter's host, and
emits events through a caller-supplied Sink:

	decoder, err := netflow.NewDecoder(ctx, netflow.DecoderOptions{})
	if err != nil {
		// only dictionary problems are fatal
	}
	decoder.Decode(ctx, payload, "192.0.2.1", func(ts time.Time, ev *netflow.Event) {
		out, _ := json.Marshal(ev)
		fmt.Println(string(out))
	})

Decoding is safe for concurrent use from multiple goroutines, typically one per exporter
socket; templates registered while decoding one datagram are visible to all subsequent
datagrams on any goroutine.

# Field dictionaries

Which fields a template may reference is defined by YAML dictionaries: one for NetFlow v9
(with the two categories scope and option) and one for IPFIX (keyed by enterprise number,
0 being the IANA registry). Defaults for both are embedded into the binary; user-supplied
files merge over them, and dictionaries written for the original fluentd netflow plugin
load unchanged, Ruby symbol type atoms included.

# Template persistence

Since templates only ever arrive in-band, a freshly restarted collector is blind until
every exporter re-announces its templates. For IPFIX the registry can therefore persist
its raw templates to a JSON file after each registration and restore them at startup.
The file stores the raw field triples rather than resolved layouts, so updating a field
dictionary does not invalidate the cached templates.

Flow sampler option records are treated specially: they populate a sampler table instead
of being emitted, and later data records referencing the sampler id are decorated with
the announced sampling algorithm and interval.
*/
package netflow
