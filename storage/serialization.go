// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/vecingest/core"
)

// recordVersion prefixes every serialized record.
const recordVersion uint64 = 1

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalRecord serializes a Record to bytes.
// Metadata is written in key order so equal records encode identically.
func MarshalRecord(record *core.Record) []byte {
	keys := sortedKeys(record.Metadata)
	buf := make([]byte, recordSize(record, keys))
	n := varint.Uint64.Marshal(recordVersion, buf)
	n += varint.Uint64.Marshal(uint64(record.Id), buf[n:])
	n += ord.String.Marshal(record.Namespace, buf[n:])
	n += ord.String.Marshal(record.Content, buf[n:])
	n += varint.Uint64.Marshal(uint64(len(keys)), buf[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(record.Metadata[k], buf[n:])
	}
	n += varint.Uint64.Marshal(uint64(len(record.Vector)), buf[n:])
	for _, f := range record.Vector {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	n += varint.Int64.Marshal(timeToMicros(record.InsertedAt), buf[n:])
	varint.Int64.Marshal(timeToMicros(record.UpdatedAt), buf[n:])
	return buf
}

func recordSize(record *core.Record, keys []string) int {
	size := varint.Uint64.Size(recordVersion)
	size += varint.Uint64.Size(uint64(record.Id))
	size += ord.String.Size(record.Namespace)
	size += ord.String.Size(record.Content)
	size += varint.Uint64.Size(uint64(len(keys)))
	for _, k := range keys {
		size += ord.String.Size(k)
		size += ord.String.Size(record.Metadata[k])
	}
	size += varint.Uint64.Size(uint64(len(record.Vector)))
	for _, f := range record.Vector {
		size += raw.Float32.Size(f)
	}
	size += varint.Int64.Size(timeToMicros(record.InsertedAt))
	size += varint.Int64.Size(timeToMicros(record.UpdatedAt))
	return size
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	r := reader{data: data}

	if version := r.uint64(); r.err == nil && version != recordVersion {
		return nil, fmt.Errorf("%w: unknown record version %d", ErrSerializationFailed, version)
	}
	record := &core.Record{}
	record.Id = core.ID(r.uint64())
	record.Namespace = r.string()
	record.Content = r.string()

	if count := r.length(); count > 0 {
		record.Metadata = make(map[string]string, count)
		for i := 0; i < count && r.err == nil; i++ {
			k := r.string()
			record.Metadata[k] = r.string()
		}
	}

	if dim := r.length(); dim > 0 {
		record.Vector = make([]float32, dim)
		for i := 0; i < dim && r.err == nil; i++ {
			record.Vector[i] = r.float32()
		}
	}

	record.InsertedAt = microsToTime(r.int64())
	record.UpdatedAt = microsToTime(r.int64())

	if r.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, r.err)
	}
	return record, nil
}

// reader walks a buffer, remembering the first error so decode steps can be
// chained without checking each one.
type reader struct {
	data []byte
	err  error
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.data)
	r.advance(n, err)
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.data)
	r.advance(n, err)
	return v
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.data)
	r.advance(n, err)
	return v
}

func (r *reader) float32() float32 {
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(r.data)
	r.advance(n, err)
	return v
}

// length reads a collection length, rejecting values larger than the
// remaining input could hold.
func (r *reader) length() int {
	v := r.uint64()
	if r.err == nil && v > uint64(len(r.data)) {
		r.err = ErrTruncatedData
		return 0
	}
	return int(v)
}

func (r *reader) advance(n int, err error) {
	if err != nil {
		r.err = err
		return
	}
	r.data = r.data[n:]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microsToTime(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}
