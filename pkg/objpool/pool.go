package objpool

import (
	"sync"
	"sync/atomic"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// DefaultMaxRecyclableVectorSize is the largest vector size kept in a pool.
const DefaultMaxRecyclableVectorSize = 4

// Config configures a Pool.
type Config struct {
	// MaxRecyclableVectorSize bounds the vector length of pooled values.
	MaxRecyclableVectorSize int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{MaxRecyclableVectorSize: DefaultMaxRecyclableVectorSize}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Obtained   uint64 // values handed out
	Reused     uint64 // values served from a free list
	Recycled   uint64 // values returned to a free list
	Disposed   uint64 // disposable values dropped on release
	FreeValues int    // values currently idle across all free lists
	SubPools   int
}

type poolKey struct {
	typ  vehicle.PropertyType
	size int
}

// Pool hands out property values backed by per-key free lists.
// It is safe for concurrent use.
type Pool struct {
	maxVectorSize int

	mu    sync.Mutex
	pools map[poolKey]*subPool

	obtained atomic.Uint64
	reused   atomic.Uint64
	recycled atomic.Uint64
	disposed atomic.Uint64
}

type subPool struct {
	key  poolKey
	mu   sync.Mutex
	free []*vehicle.PropertyValue
}

// New creates a pool.
func New(cfg Config) *Pool {
	if cfg.MaxRecyclableVectorSize <= 0 {
		cfg.MaxRecyclableVectorSize = DefaultMaxRecyclableVectorSize
	}
	return &Pool{
		maxVectorSize: cfg.MaxRecyclableVectorSize,
		pools:         make(map[poolKey]*subPool),
	}
}

// Recyclable wraps a pooled value. Value is owned by the holder until
// Release is called.
type Recyclable struct {
	Value *vehicle.PropertyValue

	pool     *Pool
	sub      *subPool // nil for disposable values
	released atomic.Bool
}

// Release returns the value to its pool. Calling Release more than once,
// or on a nil Recyclable, does nothing.
func (r *Recyclable) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	if r.pool == nil {
		return
	}
	if r.sub == nil || !fits(r.Value, r.sub.key) {
		r.pool.disposed.Add(1)
		return
	}
	reset(r.Value)
	r.sub.mu.Lock()
	r.sub.free = append(r.sub.free, r.Value)
	r.sub.mu.Unlock()
	r.pool.recycled.Add(1)
}

func (p *Pool) isDisposable(t vehicle.PropertyType, size int) bool {
	return size > p.maxVectorSize || t == vehicle.TypeString || t == vehicle.TypeMixed
}

// Obtain returns a zeroed value whose vector for type t has length size.
// Scalar types always have length 1.
func (p *Pool) Obtain(t vehicle.PropertyType, size int) *Recyclable {
	if t.IsScalar() {
		size = 1
	}
	p.obtained.Add(1)
	key := poolKey{typ: t, size: size}
	if p.isDisposable(t, size) {
		return &Recyclable{Value: allocate(key), pool: p}
	}
	sub := p.subPool(key)

	sub.mu.Lock()
	var v *vehicle.PropertyValue
	if n := len(sub.free); n > 0 {
		v = sub.free[n-1]
		sub.free = sub.free[:n-1]
	}
	sub.mu.Unlock()

	if v == nil {
		v = allocate(key)
	} else {
		p.reused.Add(1)
	}
	return &Recyclable{Value: v, pool: p, sub: sub}
}

// ObtainCopy returns a pooled deep copy of src.
func (p *Pool) ObtainCopy(src vehicle.PropertyValue) *Recyclable {
	t := vehicle.PropertyTypeOf(src.Prop)
	r := p.Obtain(t, vectorSize(t, src.Value))
	dst := r.Value
	dst.Prop = src.Prop
	dst.AreaID = src.AreaID
	dst.Timestamp = src.Timestamp
	dst.Status = src.Status
	switch t {
	case vehicle.TypeString, vehicle.TypeMixed:
		dst.Value = src.Value.Clone()
	default:
		copy(dst.Value.Int32Values, src.Value.Int32Values)
		copy(dst.Value.Int64Values, src.Value.Int64Values)
		copy(dst.Value.FloatValues, src.Value.FloatValues)
		copy(dst.Value.ByteValues, src.Value.ByteValues)
	}
	return r
}

// ObtainBoolean returns a pooled BOOLEAN value.
func (p *Pool) ObtainBoolean(b bool) *Recyclable {
	r := p.Obtain(vehicle.TypeBoolean, 1)
	if b {
		r.Value.Value.Int32Values[0] = 1
	}
	return r
}

// ObtainInt32 returns a pooled INT32 value.
func (p *Pool) ObtainInt32(v int32) *Recyclable {
	r := p.Obtain(vehicle.TypeInt32, 1)
	r.Value.Value.Int32Values[0] = v
	return r
}

// ObtainInt64 returns a pooled INT64 value.
func (p *Pool) ObtainInt64(v int64) *Recyclable {
	r := p.Obtain(vehicle.TypeInt64, 1)
	r.Value.Value.Int64Values[0] = v
	return r
}

// ObtainFloat returns a pooled FLOAT value.
func (p *Pool) ObtainFloat(v float32) *Recyclable {
	r := p.Obtain(vehicle.TypeFloat, 1)
	r.Value.Value.FloatValues[0] = v
	return r
}

// ObtainString returns a disposable STRING value.
func (p *Pool) ObtainString(s string) *Recyclable {
	r := p.Obtain(vehicle.TypeString, 0)
	r.Value.Value.StringValue = s
	return r
}

// ObtainComplex returns a disposable MIXED value.
func (p *Pool) ObtainComplex() *Recyclable {
	return p.Obtain(vehicle.TypeMixed, 0)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	subs := make([]*subPool, 0, len(p.pools))
	for _, s := range p.pools {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	st := Stats{
		Obtained: p.obtained.Load(),
		Reused:   p.reused.Load(),
		Recycled: p.recycled.Load(),
		Disposed: p.disposed.Load(),
		SubPools: len(subs),
	}
	for _, s := range subs {
		s.mu.Lock()
		st.FreeValues += len(s.free)
		s.mu.Unlock()
	}
	return st
}

func (p *Pool) subPool(key poolKey) *subPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.pools[key]
	if !ok {
		s = &subPool{key: key}
		p.pools[key] = s
	}
	return s
}

func allocate(key poolKey) *vehicle.PropertyValue {
	v := &vehicle.PropertyValue{}
	switch key.typ {
	case vehicle.TypeBoolean, vehicle.TypeInt32, vehicle.TypeInt32Vec:
		v.Value.Int32Values = make([]int32, key.size)
	case vehicle.TypeInt64, vehicle.TypeInt64Vec:
		v.Value.Int64Values = make([]int64, key.size)
	case vehicle.TypeFloat, vehicle.TypeFloatVec:
		v.Value.FloatValues = make([]float32, key.size)
	case vehicle.TypeBytes:
		v.Value.ByteValues = make([]byte, key.size)
	}
	return v
}

func vectorSize(t vehicle.PropertyType, raw vehicle.RawValue) int {
	switch t {
	case vehicle.TypeBoolean, vehicle.TypeInt32, vehicle.TypeInt32Vec:
		return len(raw.Int32Values)
	case vehicle.TypeInt64, vehicle.TypeInt64Vec:
		return len(raw.Int64Values)
	case vehicle.TypeFloat, vehicle.TypeFloatVec:
		return len(raw.FloatValues)
	case vehicle.TypeBytes:
		return len(raw.ByteValues)
	}
	return 0
}

// fits reports whether a value still has the shape of its pool. Holders
// that resized a vector get their value disposed instead of recycled.
func fits(v *vehicle.PropertyValue, key poolKey) bool {
	return vectorSize(key.typ, v.Value) == key.size
}

func reset(v *vehicle.PropertyValue) {
	v.Prop = 0
	v.AreaID = 0
	v.Timestamp = 0
	v.Status = vehicle.StatusAvailable
	v.Value.StringValue = ""
	clear(v.Value.Int32Values)
	clear(v.Value.Int64Values)
	clear(v.Value.FloatValues)
	clear(v.Value.ByteValues)
}
