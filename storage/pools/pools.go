// Package pools provides reusable buffers and encoders to keep the
// introspection hot paths allocation-light.
package pools

import (
	"bytes"
	"encoding/json"
	"sync"
)

// EncoderWrapper pairs a JSON encoder with the buffer it writes into, so
// both travel through the pool together.
type EncoderWrapper struct {
	Buffer  *bytes.Buffer
	Encoder *json.Encoder
}

// BufferPool provides reusable byte buffers to reduce allocations
var BufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// EncoderPool provides reusable JSON encoder/buffer pairs
var EncoderPool = sync.Pool{
	New: func() interface{} {
		buf := bytes.NewBuffer(make([]byte, 0, 4096))
		return &EncoderWrapper{
			Buffer:  buf,
			Encoder: json.NewEncoder(buf),
		}
	},
}

// GetBuffer gets a buffer from the pool
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool buffers > 1MB
		return
	}
	BufferPool.Put(buf)
}

// GetJSONEncoder gets an encoder/buffer pair from the pool
func GetJSONEncoder() *EncoderWrapper {
	w := EncoderPool.Get().(*EncoderWrapper)
	w.Buffer.Reset()
	return w
}

// PutJSONEncoder returns an encoder/buffer pair to the pool
func PutJSONEncoder(w *EncoderWrapper) {
	if w.Buffer.Cap() > 1024*1024 {
		return
	}
	EncoderPool.Put(w)
}
