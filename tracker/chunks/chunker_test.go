package chunks

import "testing"

func TestChunkerExactMultiple(t *testing.T) {
	data := make([]byte, 1_048_576) // 1MiB
	c := New(data, DefaultChunkSize)

	if got, want := c.Remaining(), 4; got != want {
		t.Fatalf("Remaining() = %d, want %d", got, want)
	}

	count := 0
	for {
		chunk, ok := c.Next()
		if !ok {
			break
		}
		if len(chunk) != DefaultChunkSize {
			t.Fatalf("chunk %d length = %d, want %d", count, len(chunk), DefaultChunkSize)
		}
		count++
	}
	if count != 4 {
		t.Fatalf("emitted %d chunks, want 4", count)
	}
}

func TestChunkerTrailingPartialChunk(t *testing.T) {
	data := make([]byte, 1_048_577) // 1MiB + 1 byte
	c := New(data, DefaultChunkSize)

	if got, want := c.Remaining(), 5; got != want {
		t.Fatalf("Remaining() = %d, want %d", got, want)
	}

	var lengths []int
	for {
		chunk, ok := c.Next()
		if !ok {
			break
		}
		lengths = append(lengths, len(chunk))
	}
	if len(lengths) != 5 {
		t.Fatalf("emitted %d chunks, want 5", len(lengths))
	}
	for i := 0; i < 4; i++ {
		if lengths[i] != DefaultChunkSize {
			t.Fatalf("chunk %d length = %d, want %d", i, lengths[i], DefaultChunkSize)
		}
	}
	if lengths[4] != 1 {
		t.Fatalf("last chunk length = %d, want 1", lengths[4])
	}
}

func TestChunkerEmptyData(t *testing.T) {
	c := New(nil, DefaultChunkSize)
	if c.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", c.Remaining())
	}
	if _, ok := c.Next(); ok {
		t.Fatal("expected Next() to report exhausted immediately")
	}
}

func TestRemainingDecreasesAsConsumed(t *testing.T) {
	data := make([]byte, 100)
	c := New(data, 30)
	if c.Remaining() != 4 {
		t.Fatalf("Remaining() = %d, want 4", c.Remaining())
	}
	c.Next()
	if c.Remaining() != 3 {
		t.Fatalf("Remaining() after one Next() = %d, want 3", c.Remaining())
	}
}

func TestTotalChunks(t *testing.T) {
	cases := []struct{ total, size, want int }{
		{1_048_576, DefaultChunkSize, 4},
		{1_048_577, DefaultChunkSize, 5},
		{0, DefaultChunkSize, 0},
	}
	for _, c := range cases {
		if got := TotalChunks(c.total, c.size); got != c.want {
			t.Fatalf("TotalChunks(%d, %d) = %d, want %d", c.total, c.size, got, c.want)
		}
	}
}
