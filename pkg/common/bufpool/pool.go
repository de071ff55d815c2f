package bufpool

import "sync"

// size classes; 16393 holds a frame header plus a default-sized payload.
var sizes = []int{
	128, 512, 1024, 4096, 8192,
	16*1024 + 9,
	32 * 1024,
	64 * 1024,
	65 * 1024,
}

var pools = newPools(sizes)

type pool struct {
	size int
	pool sync.Pool
}

func newPools(sizes []int) []*pool {
	ps := make([]*pool, 0, len(sizes))
	for _, size := range sizes {
		size := size
		ps = append(ps, &pool{
			size: size,
			pool: sync.Pool{
				New: func() any {
					b := make([]byte, size)
					return &b
				},
			},
		})
	}
	return ps
}

// Get returns a buffer of length size, taken from the smallest class that fits.
func Get(size int) []byte {
	for _, p := range pools {
		if size <= p.size {
			return (*p.pool.Get().(*[]byte))[:size]
		}
	}
	return make([]byte, size)
}

// Put returns b to its class. Buffers of foreign capacity are dropped.
func Put(b []byte) {
	for _, p := range pools {
		if cap(b) == p.size {
			b = b[:cap(b)]
			p.pool.Put(&b)
			return
		}
	}
}
