package pools

import (
	"testing"
)

func TestBufferPoolRoundTrip(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("wait array dump")
	PutBuffer(buf)

	buf = GetBuffer()
	if buf.Len() != 0 {
		t.Errorf("pooled buffer not reset, len=%d", buf.Len())
	}
	PutBuffer(buf)
}

func TestEncoderPoolRoundTrip(t *testing.T) {
	w := GetJSONEncoder()
	if err := w.Encoder.Encode(map[string]int{"lock_word": -1}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := w.Buffer.String(); got != "{\"lock_word\":-1}\n" {
		t.Errorf("unexpected encoding: %q", got)
	}
	PutJSONEncoder(w)

	w = GetJSONEncoder()
	if w.Buffer.Len() != 0 {
		t.Errorf("pooled encoder buffer not reset, len=%d", w.Buffer.Len())
	}
	PutJSONEncoder(w)
}
