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


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-maintained MUS serializers for the storage layer. Timestamps are
// encoded as microsecond Unix integers; vectors as raw float32 slices.

var (
	// IDMUS serializes core.ID values.
	IDMUS = idMUS{}
	// DocumentMUS serializes Document values.
	DocumentMUS = documentMUS{}
	// ChunkMUS serializes Chunk values.
	ChunkMUS = chunkMUS{}
	// CacheEntryMUS serializes CacheEntry values.
	CacheEntryMUS = cacheEntryMUS{}

	float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)
	idSliceMUS      = ord.NewSliceSer[ID](IDMUS)
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	raw, n, err := varint.Uint64.Unmarshal(bs)
	return ID(raw), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

type documentMUS struct{}

func (s documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.ContentType, bs[n:])
	n += varint.Int.Marshal(int(v.State), bs[n:])
	n += varint.Int.Marshal(v.ChunkCount, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (s documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ContentType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var state int
	if state, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.State = DocumentState(state)
	if v.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (s documentMUS) Size(v Document) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.ContentType)
	size += varint.Int.Size(int(v.State))
	size += varint.Int.Size(v.ChunkCount)
	size += ord.String.Size(v.Error)
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type chunkMUS struct{}

func (s chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.DocumentId, bs[n:])
	n += varint.Int.Marshal(v.Ordinal, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += float32SliceMUS.Marshal(v.Vector, bs[n:])
	return n
}

func (s chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.DocumentId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Ordinal, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Vector, n1, err = float32SliceMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (s chunkMUS) Size(v Chunk) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.DocumentId)
	size += varint.Int.Size(v.Ordinal)
	size += ord.String.Size(v.Text)
	size += float32SliceMUS.Size(v.Vector)
	return size
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type cacheEntryMUS struct{}

func (s cacheEntryMUS) Marshal(v CacheEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.Fingerprint, bs)
	n += ord.String.Marshal(v.Answer, bs[n:])
	n += idSliceMUS.Marshal(v.Evidence, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.ExpiresAt, bs[n:])
	return n
}

func (s cacheEntryMUS) Unmarshal(bs []byte) (v CacheEntry, n int, err error) {
	var n1 int
	if v.Fingerprint, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.Answer, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Evidence, n1, err = idSliceMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ExpiresAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (s cacheEntryMUS) Size(v CacheEntry) (size int) {
	size = ord.String.Size(v.Fingerprint)
	size += ord.String.Size(v.Answer)
	size += idSliceMUS.Size(v.Evidence)
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.ExpiresAt)
	return size
}

func (s cacheEntryMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}
